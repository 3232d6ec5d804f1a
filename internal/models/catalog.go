package models

// Product описывает тариф, доступный для покупки.
type Product struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Description  string    `yaml:"description" json:"description,omitempty"`
	Price        float64   `yaml:"price" json:"price"`
	CurrencyCode string    `yaml:"currency_code" json:"currency_code"`
	Gated        bool      `yaml:"gated" json:"gated"`
	Variants     []Variant `yaml:"variants" json:"variants,omitempty"`
}

// Variant вариант тарифа по длительности.
type Variant struct {
	Months int     `yaml:"months" json:"months"`
	Price  float64 `yaml:"price" json:"price"`
}

// PaymentMethod реквизиты для оплаты.
type PaymentMethod struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// Currency возвращает код валюты тарифа, по умолчанию рубль.
func (p Product) Currency() string {
	if p.CurrencyCode == "" {
		return "₽"
	}
	return p.CurrencyCode
}

// Variant ищет вариант тарифа по количеству месяцев.
func (p Product) Variant(months int) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Months == months {
			return v, true
		}
	}
	return Variant{}, false
}

// Catalog хранит тарифы и способы оплаты, загруженные из конфига.
type Catalog struct {
	Products []Product
	Methods  []PaymentMethod
}

// Product возвращает тариф по идентификатору.
func (c Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Method возвращает способ оплаты по идентификатору.
func (c Catalog) Method(id string) (PaymentMethod, bool) {
	for _, m := range c.Methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}
