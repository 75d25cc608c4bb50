// Package image serializes compiled programs to a compact CBOR image so hosts
// can ship and load precompiled scripts without the front end.
package image

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/vm"
)

// Magic identifies a flexscript image.
const Magic = "FXBC"

// Version is the current image format version.
const Version = 1

var (
	ErrBadMagic = errors.New("image: not a flexscript image")
	ErrVersion  = errors.New("image: unsupported image version")
)

// Image is the persisted form of a vm.Program.
type Image struct {
	Magic        string           `cbor:"1,keyasint"`
	Version      int              `cbor:"2,keyasint"`
	BuildID      string           `cbor:"3,keyasint"`
	Created      int64            `cbor:"4,keyasint"` // unix seconds
	SourceHash   string           `cbor:"5,keyasint,omitempty"`
	Instructions []vm.Instruction `cbor:"6,keyasint"`
	Origins      []Origin         `cbor:"7,keyasint,omitempty"`
	Registers    map[string]int   `cbor:"8,keyasint,omitempty"`
}

// Origin is the source position of one instruction.
type Origin struct {
	Start     int  `cbor:"1,keyasint"`
	Length    int  `cbor:"2,keyasint"`
	Line      int  `cbor:"3,keyasint,omitempty"`
	Column    int  `cbor:"4,keyasint,omitempty"`
	Generated bool `cbor:"5,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// HashSource returns the hex SHA-256 of a script's source text.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// New builds an image of prog with a fresh build ID. source may be empty
// when the program did not come from source text.
func New(prog *vm.Program, source string) *Image {
	img := &Image{
		Magic:        Magic,
		Version:      Version,
		BuildID:      uuid.New().String(),
		Created:      time.Now().Unix(),
		Instructions: prog.Instructions,
		Registers:    prog.Registers,
	}
	if source != "" {
		img.SourceHash = HashSource(source)
	}
	for _, s := range prog.Origins {
		img.Origins = append(img.Origins, Origin{
			Start:     s.Start,
			Length:    s.Length,
			Line:      s.Line,
			Column:    s.Column,
			Generated: s.Generated,
		})
	}
	return img
}

// Program rebuilds the runnable program. Debug listings are not stored; the
// flat listing can be regenerated from the instructions.
func (img *Image) Program() *vm.Program {
	prog := &vm.Program{
		Instructions: img.Instructions,
		Registers:    img.Registers,
		Origins:      make([]diag.Span, len(img.Instructions)),
	}
	if prog.Registers == nil {
		prog.Registers = map[string]int{}
	}
	for i := range prog.Origins {
		if i >= len(img.Origins) {
			prog.Origins[i] = diag.GeneratedSpan()
			continue
		}
		o := img.Origins[i]
		prog.Origins[i] = diag.Span{Start: o.Start, Length: o.Length, Line: o.Line, Column: o.Column, Generated: o.Generated}
	}
	return prog
}

// Marshal serializes an image to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes and validates an image.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Magic != Magic {
		return nil, ErrBadMagic
	}
	if img.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, img.Version)
	}
	return &img, nil
}

// WriteFile writes an image to path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return fmt.Errorf("image: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads an image from path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
