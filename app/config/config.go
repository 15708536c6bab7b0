package config

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

var CONFIG *Config

type Config struct {
	AllowUnverifiedWebhooks bool
	AllowedOrigins          []string
	DataDogClient           *statsd.Client
	Environment             string
	FrontendURL             string
	ListenAddress           string
	MongoDBConnection       string
	MongoDBName             string
	ProMonthlyPriceId       string
	Redis                   Redis
	ServiceName             string
	SlackBotToken           string
	SlackSystemChannel      string
	StatusWorkerInterval    time.Duration
	StripeEndpointSecret    string
	StripeToken             string
	TelegramSystemBotToken  string
	TelegramSystemTo        string
}

type Redis struct {
	Host     string
	Port     string
	Password string
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
