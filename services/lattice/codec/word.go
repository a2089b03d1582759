// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codec

import "fmt"

// =============================================================================
// Constants
// =============================================================================

const (
	// LayerWidth is the width of each layer field in bits.
	LayerWidth = 6

	// MaxLayerValue is the largest value a single layer can hold (63).
	MaxLayerValue = (1 << LayerWidth) - 1

	// PayloadBits is the number of meaningful low bits in a Word.
	PayloadBits = LayerWidth * int(LayerCount)

	// layerMask isolates a single layer field after shifting.
	layerMask uint32 = MaxLayerValue

	// payloadMask isolates the 24 payload bits of a Word.
	payloadMask uint32 = (1 << PayloadBits) - 1

	// reservedMask isolates the reserved high bits (24-31).
	reservedMask uint32 = ^payloadMask
)

// =============================================================================
// Layer Identifiers
// =============================================================================

// LayerID identifies one of the four layer fields within a Word.
//
// The numeric value doubles as the field position: layer i occupies bits
// [i*LayerWidth, (i+1)*LayerWidth).
type LayerID uint8

const (
	// LayerReality is the realized-state field (bits 0-5).
	LayerReality LayerID = iota

	// LayerInformation is the informational field (bits 6-11).
	LayerInformation

	// LayerActivation is the activation field (bits 12-17).
	// Interaction operators and the balance constraint read this field.
	LayerActivation

	// LayerPotential is the unrealized-potential field (bits 18-23).
	LayerPotential

	// LayerCount is the number of layer fields in a Word.
	LayerCount
)

// String returns the layer name for logs and config files.
func (id LayerID) String() string {
	switch id {
	case LayerReality:
		return "reality"
	case LayerInformation:
		return "information"
	case LayerActivation:
		return "activation"
	case LayerPotential:
		return "potential"
	default:
		return fmt.Sprintf("layer(%d)", uint8(id))
	}
}

// Valid reports whether the LayerID names one of the four defined layers.
func (id LayerID) Valid() bool {
	return id < LayerCount
}

// AllLayers returns the four layer identifiers in field order.
func AllLayers() []LayerID {
	return []LayerID{LayerReality, LayerInformation, LayerActivation, LayerPotential}
}

// ParseLayerID resolves a config-file layer name to its LayerID.
func ParseLayerID(name string) (LayerID, error) {
	for _, id := range AllLayers() {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

// shift returns the bit offset of the layer field within a Word.
func (id LayerID) shift() uint32 {
	return uint32(id) * LayerWidth
}

// =============================================================================
// LayerSet
// =============================================================================

// LayerSet is a bitmask over LayerIDs. Correction stages declare the
// layers they are allowed to modify as a LayerSet.
type LayerSet uint8

// NewLayerSet builds a set from the given layer identifiers.
func NewLayerSet(ids ...LayerID) LayerSet {
	var s LayerSet
	for _, id := range ids {
		if id.Valid() {
			s |= 1 << id
		}
	}
	return s
}

// Has reports whether the set contains the layer.
func (s LayerSet) Has(id LayerID) bool {
	return id.Valid() && s&(1<<id) != 0
}

// Overlaps reports whether the two sets share any layer.
func (s LayerSet) Overlaps(other LayerSet) bool {
	return s&other != 0
}

// Empty reports whether the set contains no layers.
func (s LayerSet) Empty() bool {
	return s == 0
}

// WordMask expands the set into the Word bits it covers.
func (s LayerSet) WordMask() uint32 {
	var mask uint32
	for _, id := range AllLayers() {
		if s.Has(id) {
			mask |= layerMask << id.shift()
		}
	}
	return mask
}

// String returns a stable comma-joined list of layer names.
func (s LayerSet) String() string {
	out := ""
	for _, id := range AllLayers() {
		if !s.Has(id) {
			continue
		}
		if out != "" {
			out += ","
		}
		out += id.String()
	}
	if out == "" {
		return "none"
	}
	return out
}

// =============================================================================
// Word
// =============================================================================

// Word is a packed cell state: four 6-bit layers in the low 24 bits,
// reserved zeros above. The zero value is Ground.
type Word uint32

// Ground is the implicit state of every absent grid coordinate.
const Ground Word = 0

// Layers holds the decoded field values of a Word. Each field ranges
// 0..MaxLayerValue.
type Layers struct {
	Reality     uint8 `json:"reality"`
	Information uint8 `json:"information"`
	Activation  uint8 `json:"activation"`
	Potential   uint8 `json:"potential"`
}

// Layer returns the value of the given layer field.
func (l Layers) Layer(id LayerID) uint8 {
	switch id {
	case LayerReality:
		return l.Reality
	case LayerInformation:
		return l.Information
	case LayerActivation:
		return l.Activation
	case LayerPotential:
		return l.Potential
	default:
		return 0
	}
}

// SetLayer returns a copy of l with the given layer field replaced.
func (l Layers) SetLayer(id LayerID, v uint8) Layers {
	switch id {
	case LayerReality:
		l.Reality = v
	case LayerInformation:
		l.Information = v
	case LayerActivation:
		l.Activation = v
	case LayerPotential:
		l.Potential = v
	}
	return l
}

// IsZero reports whether all four layer fields are zero.
func (l Layers) IsZero() bool {
	return l == Layers{}
}

// Encode packs decoded layer values into a Word.
//
// Encode fails with ErrLayerOutOfRange when any field exceeds
// MaxLayerValue. A successful Encode can never produce reserved bits.
func Encode(l Layers) (Word, error) {
	for _, id := range AllLayers() {
		if v := l.Layer(id); v > MaxLayerValue {
			return Ground, fmt.Errorf("%w: %s value %d exceeds %d", ErrLayerOutOfRange, id, v, MaxLayerValue)
		}
	}
	w := uint32(l.Reality) |
		uint32(l.Information)<<LayerInformation.shift() |
		uint32(l.Activation)<<LayerActivation.shift() |
		uint32(l.Potential)<<LayerPotential.shift()
	return Word(w), nil
}

// Decode unpacks a Word into its layer values.
//
// Decode is total: every field is masked to its 6-bit range and reserved
// bits are ignored, so Decode accepts any Word including corrupt ones.
// Use Validate first where reserved bits must be rejected.
func Decode(w Word) Layers {
	return Layers{
		Reality:     w.Reality(),
		Information: w.Information(),
		Activation:  w.Activation(),
		Potential:   w.Potential(),
	}
}

// Validate rejects words with reserved high bits set.
//
// This is the strict entry check applied at commit and snapshot-load
// boundaries. Words built through Encode always pass.
func Validate(w Word) error {
	if uint32(w)&reservedMask != 0 {
		return fmt.Errorf("%w: word %#08x", ErrReservedBits, uint32(w))
	}
	return nil
}

// Reality returns the realized-state field (bits 0-5).
func (w Word) Reality() uint8 {
	return uint8(uint32(w) >> LayerReality.shift() & layerMask)
}

// Information returns the informational field (bits 6-11).
func (w Word) Information() uint8 {
	return uint8(uint32(w) >> LayerInformation.shift() & layerMask)
}

// Activation returns the activation field (bits 12-17).
func (w Word) Activation() uint8 {
	return uint8(uint32(w) >> LayerActivation.shift() & layerMask)
}

// Potential returns the unrealized-potential field (bits 18-23).
func (w Word) Potential() uint8 {
	return uint8(uint32(w) >> LayerPotential.shift() & layerMask)
}

// Layer returns the value of an arbitrary layer field.
// Unknown LayerIDs read as zero; use WithLayer for the checked path.
func (w Word) Layer(id LayerID) uint8 {
	if !id.Valid() {
		return 0
	}
	return uint8(uint32(w) >> id.shift() & layerMask)
}

// WithLayer returns a copy of the word with one layer field replaced.
//
// Fails with ErrUnknownLayer for an invalid LayerID and with
// ErrLayerOutOfRange when v exceeds MaxLayerValue.
func (w Word) WithLayer(id LayerID, v uint8) (Word, error) {
	if !id.Valid() {
		return w, fmt.Errorf("%w: id %d", ErrUnknownLayer, uint8(id))
	}
	if v > MaxLayerValue {
		return w, fmt.Errorf("%w: %s value %d exceeds %d", ErrLayerOutOfRange, id, v, MaxLayerValue)
	}
	cleared := uint32(w) &^ (layerMask << id.shift())
	return Word(cleared | uint32(v)<<id.shift()), nil
}

// IsGround reports whether the word is the ground state.
func (w Word) IsGround() bool {
	return w == Ground
}

// String renders the decoded fields for logs and test failures.
func (w Word) String() string {
	return fmt.Sprintf("R:%d I:%d A:%d P:%d", w.Reality(), w.Information(), w.Activation(), w.Potential())
}
