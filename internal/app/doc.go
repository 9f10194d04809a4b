// Package app contains the core application logic: the App struct, its
// configuration, and the build / watch / script execution flows, decoupled
// from any specific entrypoint.
package app
