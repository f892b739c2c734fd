package bucket

import (
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// ImageResolver picks the art shown for an instance.
type ImageResolver interface {
	Resolve(v variant.Variant, inst instance.Instance) string
}

// ResolverFunc adapts a function to ImageResolver.
type ResolverFunc func(v variant.Variant, inst instance.Instance) string

// Resolve calls f.
func (f ResolverFunc) Resolve(v variant.Variant, inst instance.Instance) string {
	return f(v, inst)
}

// CatalogResolver resolves art from the catalog entry alone.
type CatalogResolver struct{}

// Resolve implements ImageResolver. Form changes (mega, fusion, gigantamax)
// take precedence over costume art, which takes precedence over the base
// art. Female art is used only when the catalog ships a distinct image.
func (CatalogResolver) Resolve(v variant.Variant, inst instance.Instance) string {
	shiny := v.Shiny || inst.Shiny
	female := inst.Details.Gender == "female"

	if inst.IsMega {
		if m, ok := v.MegaEvolution(inst.MegaForm); ok {
			return pick(m.Image,
				choice{shiny && female, m.ShinyFemaleImage},
				choice{female, m.FemaleImage},
				choice{shiny, m.ShinyImage},
			)
		}
	}

	if inst.IsFused {
		if f, ok := fusionFor(v, inst); ok {
			return pick(f.Image, choice{shiny, f.ShinyImage})
		}
	}

	if inst.Gigantamax || (inst.Dynamax && v.Gigantamax) {
		if g, ok := v.GigantamaxForm(); ok {
			return pick(g.Image, choice{shiny, g.ShinyImage})
		}
	}

	// purified copies lose the shadow overlay
	shadow := v.Shadow && !inst.Purified

	if v.CostumeID != 0 {
		if c, ok := v.Costume(v.CostumeID); ok {
			return pick(c.Image,
				choice{shiny && shadow, c.ShinyShadowImage},
				choice{shadow, c.ShadowImage},
				choice{shiny, c.ShinyImage},
			)
		}
	}

	img := v.Images
	return pick(img.Default,
		choice{shiny && shadow, img.ShinyShadow},
		choice{shadow, img.Shadow},
		choice{shiny && female && v.HasFemaleArt(true), img.ShinyFemale},
		choice{!shiny && female && v.HasFemaleArt(false), img.Female},
		choice{shiny, img.Shiny},
	)
}

func fusionFor(v variant.Variant, inst instance.Instance) (variant.Fusion, bool) {
	for _, f := range v.Fusions {
		if inst.FusionForm != "" && f.Name == inst.FusionForm {
			return f, true
		}
	}
	if inst.FusionID != 0 {
		return v.Fusion(inst.FusionID)
	}
	if n := len(inst.Fusions); n > 0 {
		return v.Fusion(inst.Fusions[n-1])
	}
	return variant.Fusion{}, false
}

type choice struct {
	when  bool
	image string
}

// pick returns the first applicable non-empty image, else fallback.
func pick(fallback string, choices ...choice) string {
	for _, c := range choices {
		if c.when && c.image != "" {
			return c.image
		}
	}
	return fallback
}
