package types

import "strings"

// ShippingAddress is the delivery snapshot captured at order time.
type ShippingAddress struct {
	Name    string `json:"name,omitempty" validate:"omitempty,max=120"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address string `json:"address,omitempty" validate:"omitempty,max=240"`
	City    string `json:"city,omitempty" validate:"omitempty,max=120"`
	State   string `json:"state,omitempty" validate:"omitempty,max=120"`
	Zip     string `json:"zip,omitempty" validate:"omitempty,max=20"`
	Country string `json:"country,omitempty" validate:"omitempty,max=56"`
}

// Contact is the contact snapshot captured at order time.
type Contact struct {
	Name  string `json:"name,omitempty" validate:"omitempty,max=120"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Normalize trims every field and applies the default country.
func (s ShippingAddress) Normalize(defaultCountry string) ShippingAddress {
	out := ShippingAddress{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.ToLower(strings.TrimSpace(s.Email)),
		Phone:   strings.TrimSpace(s.Phone),
		Address: strings.TrimSpace(s.Address),
		City:    strings.TrimSpace(s.City),
		State:   strings.TrimSpace(s.State),
		Zip:     strings.TrimSpace(s.Zip),
		Country: strings.ToUpper(strings.TrimSpace(s.Country)),
	}
	if out.Country == "" {
		out.Country = strings.ToUpper(strings.TrimSpace(defaultCountry))
	}
	return out
}

// Normalize trims every field.
func (c Contact) Normalize() Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}
