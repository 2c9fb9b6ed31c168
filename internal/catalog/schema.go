package catalog

import (
	"github.com/zclconf/go-cty/cty"
)

// --- Manifest file schema ---
//
// A manifest file holds any number of `kind` blocks:
//
//	kind "while" {
//	  label    = "While Loop"
//	  category = "control"
//	  template = "while ($${cond})"
//	  loop { mode = "pretest" }
//	  socket "cond" { type = "bool" }
//	}
//
// Placeholders are written with HCL's $${} escape so the decoder leaves the
// literal ${name} text for template expansion.

// manifestFile is the top-level structure of a catalog manifest.
type manifestFile struct {
	Kinds []*kindBlock `hcl:"kind,block"`
}

// kindBlock is one `kind` block in a manifest.
type kindBlock struct {
	ID           string         `hcl:"id,label"`
	Label        string         `hcl:"label,optional"`
	Category     string         `hcl:"category"`
	Template     string         `hcl:"template"`
	Includes     []string       `hcl:"includes,optional"`
	Directive    bool           `hcl:"directive,optional"`
	RequiresLoop bool           `hcl:"requires_loop,optional"`
	Terminator   bool           `hcl:"terminator,optional"`
	Branch       *branchBlock   `hcl:"branch,block"`
	Loop         *loopBlock     `hcl:"loop,block"`
	Sockets      []*socketBlock `hcl:"socket,block"`
}

// branchBlock declares the named arms of a branching kind.
type branchBlock struct {
	Arms []*armBlock `hcl:"arm,block"`
}

// armBlock declares a single branch arm.
type armBlock struct {
	Name     string `hcl:"name,label"`
	Required bool   `hcl:"required,optional"`
}

// loopBlock declares the loop mode of a looping kind.
type loopBlock struct {
	Mode string `hcl:"mode"`
}

// socketBlock declares a single typed socket.
type socketBlock struct {
	Name     string     `hcl:"name,label"`
	Type     string     `hcl:"type"`
	Dir      string     `hcl:"dir,optional"`
	Raw      bool       `hcl:"raw,optional"`
	Optional bool       `hcl:"optional,optional"`
	Default  *cty.Value `hcl:"default,optional"`
	Choices  []string   `hcl:"choices,optional"`
	Declares bool       `hcl:"declares,optional"`
}
