// Package variant provides the read-only catalog of collectible variants.
package variant

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog operations.
var (
	ErrInvalidVariant = errors.New("invalid variant")
	ErrDuplicateKey   = errors.New("duplicate variant key")
)

// Kind classifies a variant. It is read from the catalog document and never
// derived from the variant key.
type Kind string

// Variant kinds.
const (
	KindDefault    Kind = "default"
	KindShiny      Kind = "shiny"
	KindShadow     Kind = "shadow"
	KindCostume    Kind = "costume"
	KindMega       Kind = "mega"
	KindPrimal     Kind = "primal"
	KindFusion     Kind = "fusion"
	KindDynamax    Kind = "dynamax"
	KindGigantamax Kind = "gigantamax"
)

var validKinds = map[Kind]bool{
	KindDefault:    true,
	KindShiny:      true,
	KindShadow:     true,
	KindCostume:    true,
	KindMega:       true,
	KindPrimal:     true,
	KindFusion:     true,
	KindDynamax:    true,
	KindGigantamax: true,
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// IsMega reports whether the kind is a mega or primal evolution.
func (k Kind) IsMega() bool {
	return k == KindMega || k == KindPrimal
}

// Images holds the catalog art for a variant.
type Images struct {
	Default     string `json:"default" yaml:"default"`
	Shiny       string `json:"shiny,omitempty" yaml:"shiny,omitempty"`
	Female      string `json:"female,omitempty" yaml:"female,omitempty"`
	ShinyFemale string `json:"shiny_female,omitempty" yaml:"shiny_female,omitempty"`
	Shadow      string `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	ShinyShadow string `json:"shiny_shadow,omitempty" yaml:"shiny_shadow,omitempty"`
}

// MegaEvolution describes a mega or primal form reachable from a species.
type MegaEvolution struct {
	Form             string `json:"form,omitempty" yaml:"form,omitempty"`
	Primal           bool   `json:"primal,omitempty" yaml:"primal,omitempty"`
	Image            string `json:"image" yaml:"image"`
	ShinyImage       string `json:"shiny_image,omitempty" yaml:"shiny_image,omitempty"`
	FemaleImage      string `json:"female_image,omitempty" yaml:"female_image,omitempty"`
	ShinyFemaleImage string `json:"shiny_female_image,omitempty" yaml:"shiny_female_image,omitempty"`
}

// Fusion describes a fusion form reachable from a species.
type Fusion struct {
	ID               int    `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	PartnerSpeciesID int    `json:"partner_species_id" yaml:"partner_species_id"`
	Image            string `json:"image" yaml:"image"`
	ShinyImage       string `json:"shiny_image,omitempty" yaml:"shiny_image,omitempty"`
}

// MaxForm describes dynamax or gigantamax art.
type MaxForm struct {
	Gigantamax bool   `json:"gigantamax" yaml:"gigantamax"`
	Image      string `json:"image" yaml:"image"`
	ShinyImage string `json:"shiny_image,omitempty" yaml:"shiny_image,omitempty"`
}

// Costume describes a costume and its art.
type Costume struct {
	ID               int    `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Image            string `json:"image" yaml:"image"`
	ShinyImage       string `json:"shiny_image,omitempty" yaml:"shiny_image,omitempty"`
	ShadowImage      string `json:"shadow_image,omitempty" yaml:"shadow_image,omitempty"`
	ShinyShadowImage string `json:"shiny_shadow_image,omitempty" yaml:"shiny_shadow_image,omitempty"`
}

// Variant is one immutable catalog entry.
type Variant struct {
	Key         string `json:"variant_key" yaml:"variant_key"`
	Name        string `json:"name" yaml:"name"`
	SpeciesID   int    `json:"species_id" yaml:"species_id"`
	Form        string `json:"form,omitempty" yaml:"form,omitempty"`
	VariantType string `json:"variant_type" yaml:"variant_type"`
	Kind        Kind   `json:"kind" yaml:"kind"`

	Shiny      bool   `json:"shiny,omitempty" yaml:"shiny,omitempty"`
	Shadow     bool   `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	CostumeID  int    `json:"costume_id,omitempty" yaml:"costume_id,omitempty"`
	MegaForm   string `json:"mega_form,omitempty" yaml:"mega_form,omitempty"`
	FusionID   int    `json:"fusion_id,omitempty" yaml:"fusion_id,omitempty"`
	Dynamax    bool   `json:"dynamax,omitempty" yaml:"dynamax,omitempty"`
	Gigantamax bool   `json:"gigantamax,omitempty" yaml:"gigantamax,omitempty"`

	Images         Images          `json:"images" yaml:"images"`
	MegaEvolutions []MegaEvolution `json:"mega_evolutions,omitempty" yaml:"mega_evolutions,omitempty"`
	Fusions        []Fusion        `json:"fusions,omitempty" yaml:"fusions,omitempty"`
	Max            []MaxForm       `json:"max,omitempty" yaml:"max,omitempty"`
	Costumes       []Costume       `json:"costumes,omitempty" yaml:"costumes,omitempty"`

	// SharedRegistration names a group of variants whose registration is
	// propagated one way: once any member is registered, all are.
	SharedRegistration string `json:"shared_registration,omitempty" yaml:"shared_registration,omitempty"`
}

// FormatKey builds a variant key from a species id and a variant type.
func FormatKey(speciesID int, variantType string) string {
	return fmt.Sprintf("%04d-%s", speciesID, variantType)
}

// HasFemaleArt reports whether the variant ships distinct female art for the
// given shininess.
func (v Variant) HasFemaleArt(shiny bool) bool {
	if shiny {
		return v.Images.ShinyFemale != "" && v.Images.ShinyFemale != v.Images.Shiny
	}
	return v.Images.Female != "" && v.Images.Female != v.Images.Default
}

// DefaultImage returns the variant's own art.
func (v Variant) DefaultImage() string {
	switch {
	case v.Shiny && v.Shadow && v.Images.ShinyShadow != "":
		return v.Images.ShinyShadow
	case v.Shadow && v.Images.Shadow != "":
		return v.Images.Shadow
	case v.Shiny && v.Images.Shiny != "":
		return v.Images.Shiny
	default:
		return v.Images.Default
	}
}

// Costume returns the costume with the given id.
func (v Variant) Costume(id int) (Costume, bool) {
	for _, c := range v.Costumes {
		if c.ID == id {
			return c, true
		}
	}
	return Costume{}, false
}

// MegaEvolution returns the mega evolution matching form. An empty form
// matches the first non-primal entry; "primal" matches a primal entry.
func (v Variant) MegaEvolution(form string) (MegaEvolution, bool) {
	for _, m := range v.MegaEvolutions {
		switch {
		case form == "primal" && m.Primal:
			return m, true
		case form == "" && !m.Primal:
			return m, true
		case form != "" && m.Form == form:
			return m, true
		}
	}
	return MegaEvolution{}, false
}

// Fusion returns the fusion form with the given id.
func (v Variant) Fusion(id int) (Fusion, bool) {
	for _, f := range v.Fusions {
		if f.ID == id {
			return f, true
		}
	}
	return Fusion{}, false
}

// GigantamaxForm returns the gigantamax art if present.
func (v Variant) GigantamaxForm() (MaxForm, bool) {
	for _, m := range v.Max {
		if m.Gigantamax {
			return m, true
		}
	}
	return MaxForm{}, false
}

// normalize fills derived fields and validates the entry.
func (v *Variant) normalize() error {
	if v.Key == "" && v.SpeciesID > 0 && v.VariantType != "" {
		v.Key = FormatKey(v.SpeciesID, v.VariantType)
	}
	if v.Key == "" {
		return fmt.Errorf("%w: missing variant_key", ErrInvalidVariant)
	}
	if v.Kind == "" {
		v.Kind = KindDefault
	}
	if !v.Kind.IsValid() {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidVariant, v.Key, v.Kind)
	}
	if v.SpeciesID <= 0 {
		return fmt.Errorf("%w: %s has no species_id", ErrInvalidVariant, v.Key)
	}
	return nil
}
