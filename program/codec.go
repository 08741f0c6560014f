package program

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format of a program document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath returns the document format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, errors.Errorf("%s: unknown program document extension", path)
	}
}

// Document is the serialized form of a Program.
//
//	{
//	  "name": "forward",
//	  "dialect": "pir",
//	  "ops": [
//	    {"name": "cinn_op.jit_kernel_0"},
//	    {"name": "pd_op.if", "blocks": [{"ops": [...]}, {"ops": [...]}]}
//	  ]
//	}
//
// Operation kinds are not stored: they are recovered from the names through
// the document's dialect.
type Document struct {
	Name    string         `json:"name" yaml:"name"`
	ID      string         `json:"id,omitempty" yaml:"id,omitempty"`
	Dialect string         `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Ops     []OperationDoc `json:"ops" yaml:"ops"`
}

// OperationDoc is the serialized form of an Operation.
type OperationDoc struct {
	Name   string     `json:"name" yaml:"name"`
	Blocks []BlockDoc `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// BlockDoc is the serialized form of a Block.
type BlockDoc struct {
	Ops []OperationDoc `json:"ops" yaml:"ops"`
}

// NewDocument returns the document form of p.
func NewDocument(p *Program) *Document {
	return &Document{
		Name:    p.Name,
		ID:      p.ID,
		Dialect: p.Dialect.Name,
		Ops:     blockDoc(p.Global).Ops,
	}
}

func blockDoc(b *Block) BlockDoc {
	doc := BlockDoc{Ops: make([]OperationDoc, 0, b.Len())}
	if b == nil {
		return doc
	}
	for _, op := range b.Operations {
		opDoc := OperationDoc{Name: op.Name()}
		switch op := op.(type) {
		case *CondOp:
			opDoc.Blocks = []BlockDoc{blockDoc(op.True), blockDoc(op.False)}
		case *WhileOp:
			opDoc.Blocks = []BlockDoc{blockDoc(op.Body)}
		}
		doc.Ops = append(doc.Ops, opDoc)
	}
	return doc
}

// Program converts the document to a Program. If override is not the zero
// Dialect it is used to classify names, otherwise the dialect named in the
// document is used, and PIR when the document names none.
//
// Nested blocks of operations that are neither conditionals nor loops are
// dropped: only control flow is descended into.
func (doc *Document) Program(override Dialect) (*Program, error) {
	d := override
	if d.IsZero() {
		d = PIR
		if doc.Dialect != "" {
			var err error
			if d, err = LookupDialect(doc.Dialect); err != nil {
				return nil, err
			}
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	global, err := convertBlock(d, BlockDoc{Ops: doc.Ops}, "global")
	if err != nil {
		return nil, err
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Program{
		Name:    doc.Name,
		ID:      id,
		Dialect: d,
		Global:  global,
	}, nil
}

func convertBlock(d Dialect, doc BlockDoc, path string) (*Block, error) {
	block := &Block{Operations: make([]Operation, 0, len(doc.Ops))}
	var nextCond, nextWhile int
	for i, opDoc := range doc.Ops {
		switch d.Classify(opDoc.Name) {
		case KindFusedKernel:
			block.Operations = append(block.Operations, FusedKernel(opDoc.Name))

		case KindCond:
			opPath := fmt.Sprintf("%s/cond_%d", path, nextCond)
			nextCond++
			if len(opDoc.Blocks) != 2 {
				return nil, errors.Wrapf(ErrMalformed, "%s: operation #%d %q has %d blocks, want 2",
					opPath, i, opDoc.Name, len(opDoc.Blocks))
			}
			trueBlock, err := convertBlock(d, opDoc.Blocks[0], opPath+".true")
			if err != nil {
				return nil, err
			}
			falseBlock, err := convertBlock(d, opDoc.Blocks[1], opPath+".false")
			if err != nil {
				return nil, err
			}
			block.Operations = append(block.Operations, NewCond(opDoc.Name, trueBlock, falseBlock))

		case KindWhile:
			opPath := fmt.Sprintf("%s/while_%d", path, nextWhile)
			nextWhile++
			if len(opDoc.Blocks) != 1 {
				return nil, errors.Wrapf(ErrMalformed, "%s: operation #%d %q has %d blocks, want 1",
					opPath, i, opDoc.Name, len(opDoc.Blocks))
			}
			body, err := convertBlock(d, opDoc.Blocks[0], opPath+".body")
			if err != nil {
				return nil, err
			}
			block.Operations = append(block.Operations, NewWhile(opDoc.Name, body))

		default:
			block.Operations = append(block.Operations, Op(opDoc.Name))
		}
	}
	return block, nil
}

// Decode parses a program document. See Document.Program for the meaning of override.
func Decode(data []byte, format Format, override Dialect) (*Program, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode program json")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode program yaml")
		}
	default:
		return nil, errors.Errorf("unknown program format %d", format)
	}
	return doc.Program(override)
}

// Encode serializes p as a program document.
func Encode(p *Program, format Format) ([]byte, error) {
	doc := NewDocument(p)
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encode program json")
		}
		return data, nil
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "encode program yaml")
		}
		return data, nil
	default:
		return nil, errors.Errorf("unknown program format %d", format)
	}
}

// ReadFile reads a program document, picking the format from the extension.
func ReadFile(path string, override Dialect) (*Program, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read program")
	}
	p, err := Decode(data, format, override)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return p, nil
}

// WriteFile writes p as a program document, picking the format from the extension.
func WriteFile(path string, p *Program) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(p, format)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write program")
}
