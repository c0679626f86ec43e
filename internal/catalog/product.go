package catalog

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InitialNextID is the first id handed out by an empty catalog.
const InitialNextID = 100

const (
	defaultIntensidad    = 1
	defaultMaxIntensidad = 5
)

type PriceTier struct {
	Cantidad string `json:"cantidad" validate:"required"`
	Precio   int    `json:"precio" validate:"gte=0"`
}

type Product struct {
	ID            int         `json:"id"`
	Nombre        string      `json:"nombre"`
	Descripcion   string      `json:"descripcion"`
	Imagen        string      `json:"imagen"`
	Categoria     string      `json:"categoria"`
	Marca         string      `json:"marca"`
	Precios       []PriceTier `json:"precios"`
	Intensidad    int         `json:"intensidad"`
	MaxIntensidad int         `json:"maxIntensidad"`
}

// Catalog is the persisted aggregate. NextID is always greater than any id
// the catalog has ever held.
type Catalog struct {
	NextID    int       `json:"nextId"`
	Productos []Product `json:"productos"`
}

func newCatalog() Catalog {
	return Catalog{NextID: InitialNextID, Productos: []Product{}}
}

func (c Catalog) clone() Catalog {
	out := Catalog{NextID: c.NextID, Productos: make([]Product, len(c.Productos))}
	for i, p := range c.Productos {
		out.Productos[i] = p.clone()
	}
	return out
}

func (c Catalog) indexOf(id int) int {
	for i, p := range c.Productos {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// repair restores the NextID invariant after a hand-edited document is loaded.
func (c *Catalog) repair() bool {
	if c.Productos == nil {
		c.Productos = []Product{}
	}
	next := c.NextID
	if next <= 0 {
		next = InitialNextID
	}
	for _, p := range c.Productos {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	changed := next != c.NextID
	c.NextID = next
	return changed
}

func (p Product) clone() Product {
	if p.Precios != nil {
		p.Precios = append([]PriceTier(nil), p.Precios...)
	}
	return p
}

func cloneAll(ps []Product) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = p.clone()
	}
	return out
}

// ProductInput is the client payload for create and update. Any id it carries
// is ignored; the store owns identifiers. Descripcion must be present but may
// be empty.
type ProductInput struct {
	Nombre        string      `json:"nombre" validate:"required"`
	Descripcion   *string     `json:"descripcion" validate:"required"`
	Imagen        *string     `json:"imagen"`
	Categoria     string      `json:"categoria" validate:"required"`
	Marca         string      `json:"marca" validate:"required"`
	Precios       []PriceTier `json:"precios" validate:"required,dive"`
	Intensidad    *int        `json:"intensidad"`
	MaxIntensidad *int        `json:"maxIntensidad"`
}

// Product applies defaults for the optional fields.
func (in ProductInput) Product(placeholder string) Product {
	p := Product{
		Nombre:        strings.TrimSpace(in.Nombre),
		Imagen:        placeholder,
		Categoria:     strings.TrimSpace(in.Categoria),
		Marca:         strings.TrimSpace(in.Marca),
		Precios:       append([]PriceTier{}, in.Precios...),
		Intensidad:    defaultIntensidad,
		MaxIntensidad: defaultMaxIntensidad,
	}
	if in.Descripcion != nil {
		p.Descripcion = *in.Descripcion
	}
	if in.Imagen != nil && *in.Imagen != "" {
		p.Imagen = *in.Imagen
	}
	if in.Intensidad != nil {
		p.Intensidad = *in.Intensidad
	}
	if in.MaxIntensidad != nil {
		p.MaxIntensidad = *in.MaxIntensidad
	}
	return p
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Validate reports every violated rule, keyed by JSON field path.
func (in ProductInput) Validate() []FieldError {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Rule: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, FieldError{Field: field, Rule: fe.Tag()})
	}
	return out
}
