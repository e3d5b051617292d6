package pricing

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DiscountType is how a promotion value is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ErrUnknownCode is returned for codes missing from the table
var ErrUnknownCode = errors.New("unknown promotion code")

// MinimumOrderError is returned when the amount is below a promotion's threshold
type MinimumOrderError struct {
	Code    string
	Minimum float64
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("Minimum order amount of $%s required.", formatAmount(e.Minimum))
}

// Promotion is one entry of the promotion table
type Promotion struct {
	Code           string       `yaml:"code" json:"code"`
	Type           DiscountType `yaml:"type" json:"type"`
	Value          float64      `yaml:"value" json:"value"`
	MinOrderAmount float64      `yaml:"minOrderAmount" json:"minOrderAmount"`
	Description    string       `yaml:"description" json:"description,omitempty"`
}

// DiscountFor returns the discount on amount, never more than amount itself
func (p Promotion) DiscountFor(amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch p.Type {
	case DiscountPercentage:
		d = amount.Mul(decimal.NewFromFloat(p.Value)).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		d = decimal.NewFromFloat(p.Value)
	}
	if d.GreaterThan(amount) {
		return amount
	}
	return d
}

// Promotions is the lookup table of promotion codes. Codes are case-insensitive.
type Promotions struct {
	byCode map[string]Promotion
}

// DefaultPromotions is used when no promotions file is configured
func DefaultPromotions() *Promotions {
	p, _ := NewPromotions([]Promotion{
		{Code: "SAVE10", Type: DiscountPercentage, Value: 10, MinOrderAmount: 50, Description: "10% off orders of $50 or more"},
		{Code: "SAVE20", Type: DiscountPercentage, Value: 20, MinOrderAmount: 100, Description: "20% off orders of $100 or more"},
		{Code: "WELCOME15", Type: DiscountFixed, Value: 15, MinOrderAmount: 75, Description: "$15 off orders of $75 or more"},
	})
	return p
}

// NewPromotions validates and indexes a promotion list
func NewPromotions(list []Promotion) (*Promotions, error) {
	byCode := make(map[string]Promotion, len(list))
	for _, p := range list {
		p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
		if p.Code == "" {
			return nil, errors.New("promotion code cannot be empty")
		}
		if _, dup := byCode[p.Code]; dup {
			return nil, fmt.Errorf("duplicate promotion code %s", p.Code)
		}
		switch p.Type {
		case DiscountPercentage:
			if p.Value <= 0 || p.Value > 100 {
				return nil, fmt.Errorf("promotion %s: percentage must be in (0, 100]", p.Code)
			}
		case DiscountFixed:
			if p.Value <= 0 {
				return nil, fmt.Errorf("promotion %s: fixed value must be positive", p.Code)
			}
		default:
			return nil, fmt.Errorf("promotion %s: unknown type %q", p.Code, p.Type)
		}
		if p.MinOrderAmount < 0 {
			return nil, fmt.Errorf("promotion %s: minimum order cannot be negative", p.Code)
		}
		byCode[p.Code] = p
	}
	return &Promotions{byCode: byCode}, nil
}

// LoadPromotions reads a YAML file of the form `promotions: [{code, type, value, minOrderAmount}]`
func LoadPromotions(path string) (*Promotions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read promotions file: %w", err)
	}
	var doc struct {
		Promotions []Promotion `yaml:"promotions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse promotions file: %w", err)
	}
	return NewPromotions(doc.Promotions)
}

// Lookup finds a promotion by code
func (p *Promotions) Lookup(code string) (Promotion, bool) {
	promo, ok := p.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return promo, ok
}

// Evaluate checks code against amount and returns the promotion and its discount
func (p *Promotions) Evaluate(code string, amount float64) (Promotion, float64, error) {
	promo, ok := p.Lookup(code)
	if !ok {
		return Promotion{}, 0, ErrUnknownCode
	}
	if amount < promo.MinOrderAmount {
		return Promotion{}, 0, &MinimumOrderError{Code: promo.Code, Minimum: promo.MinOrderAmount}
	}
	return promo, toCents(promo.DiscountFor(decimal.NewFromFloat(amount))), nil
}

// All returns the table sorted by code
func (p *Promotions) All() []Promotion {
	out := make([]Promotion, 0, len(p.byCode))
	for _, promo := range p.byCode {
		out = append(out, promo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func formatAmount(f float64) string {
	d := decimal.NewFromFloat(f)
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(2)
}
