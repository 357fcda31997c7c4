package mercadopago

import "time"

// Config holds MercadoPago credentials.
type Config struct {
	AccessToken        string        `env:"MERCADOPAGO_ACCESS_TOKEN"`
	WebhookSecret      string        `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	BaseURL            string        `env:"MERCADOPAGO_BASE_URL" envDefault:"https://api.mercadopago.com"`
	SignatureTolerance time.Duration `env:"MERCADOPAGO_SIGNATURE_TOLERANCE" envDefault:"10m"`
	ProductName        string        `env:"MERCADOPAGO_PRODUCT_NAME" envDefault:"Slotbook"`
}
