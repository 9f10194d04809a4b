package manifest

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders the manifest back to HCL source. Used when scaffolding the
// scratch project for script runs; the output round-trips through Load.
func Encode(m *Manifest) []byte {
	file := hclwrite.NewEmptyFile()
	body := file.Body()

	project := body.AppendNewBlock("project", nil).Body()
	project.SetAttributeValue("name", cty.StringVal(m.Project.Name))
	project.SetAttributeValue("sources", stringList(m.Project.Sources))
	if m.Project.Output != "" && m.Project.Output != "output" {
		project.SetAttributeValue("output", cty.StringVal(m.Project.Output))
	}
	if m.Project.Compiler != "" && m.Project.Compiler != "purs" {
		project.SetAttributeValue("compiler", cty.StringVal(m.Project.Compiler))
	}
	if m.Project.Backend != "" {
		project.SetAttributeValue("backend", cty.StringVal(m.Project.Backend))
	}
	if len(m.Project.Dependencies) > 0 {
		project.SetAttributeValue("dependencies", stringList(m.Project.Dependencies))
	}

	for _, pkg := range m.Packages {
		body.AppendNewline()
		block := body.AppendNewBlock("package", []string{pkg.Name}).Body()
		block.SetAttributeValue("sources", stringList(pkg.Sources))
	}

	if len(m.Hooks.Before)+len(m.Hooks.Else)+len(m.Hooks.Then) > 0 {
		body.AppendNewline()
		hooks := body.AppendNewBlock("hooks", nil).Body()
		if len(m.Hooks.Before) > 0 {
			hooks.SetAttributeValue("before", stringList(m.Hooks.Before))
		}
		if len(m.Hooks.Else) > 0 {
			hooks.SetAttributeValue("else", stringList(m.Hooks.Else))
		}
		if len(m.Hooks.Then) > 0 {
			hooks.SetAttributeValue("then", stringList(m.Hooks.Then))
		}
	}

	return file.Bytes()
}

func stringList(values []string) cty.Value {
	if len(values) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.StringVal(v)
	}
	return cty.ListVal(vals)
}
