package project

import "github.com/hashicorp/hcl/v2"

// --- Project file schema ---
//
//	project {
//	  entry = "start"
//	}
//
//	block "print_str" "start" {
//	  sockets {
//	    text = "Hello, World!"
//	  }
//	  next = "done"
//	}
//
//	wire {
//	  from = "sum.out"
//	  to   = "show.value"
//	}
//
// Control ports appear as plain attributes on the block (next, then, else,
// body, whatever the kind declares), naming the successor block.

type projectFile struct {
	Project *projectBlock `hcl:"project,block"`
	Blocks  []*blockDecl  `hcl:"block,block"`
	Wires   []*wireDecl   `hcl:"wire,block"`
}

type projectBlock struct {
	Entry string `hcl:"entry,optional"`
}

type blockDecl struct {
	Kind    string       `hcl:"kind,label"`
	Name    string       `hcl:"name,label"`
	Sockets *socketsDecl `hcl:"sockets,block"`
	Ports   hcl.Body     `hcl:",remain"`
}

type socketsDecl struct {
	Body hcl.Body `hcl:",remain"`
}

type wireDecl struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}
