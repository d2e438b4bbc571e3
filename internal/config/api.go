package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type (
	DB struct {
		Path string `envconfig:"DB_PATH" default:"srs.db"`
	}

	CORS struct {
		AllowOrigins []string `envconfig:"ALLOW_ORIGINS" default:"*"`
	}

	JWT struct {
		Issuer    string        `envconfig:"ISSUER" default:"lingolens-srs"`
		Audience  []string      `envconfig:"AUDIENCE" default:"lingolens-app"`
		Secret    string        `envconfig:"SECRET"`
		ExpiresIn time.Duration `envconfig:"EXPIRES_IN" default:"24h"`
	}

	Auth struct {
		APIKey string `envconfig:"API_KEY"`
	}

	HTTP struct {
		ProcessTimeout time.Duration `envconfig:"PROCESS_TIMEOUT" default:"10s"`
		RateLimit      float64       `envconfig:"RATE_LIMIT" default:"25"`
		CORS           CORS
		JWT            JWT
	}

	Server struct {
		ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
		Addr              string        `envconfig:"ADDR" default:":8080"`
	}

	Analytics struct {
		Endpoint string `envconfig:"ENDPOINT"`
		Token    string `envconfig:"TOKEN"`
	}

	Scheduling struct {
		// ExactDays switches next-review arithmetic from calendar days to
		// exact interval*24h offsets.
		ExactDays         bool          `envconfig:"EXACT_DAYS" default:"false"`
		DueDigestInterval time.Duration `envconfig:"DUE_DIGEST_INTERVAL" default:"1h"`
		DigestLocation    string        `envconfig:"DIGEST_LOCATION" default:"UTC"`
	}

	// SSM names the parameter-store keys secrets are resolved from when the
	// corresponding env values are empty outside dev.
	SSM struct {
		JWTSecretKey string `envconfig:"JWT_SECRET_KEY"`
		APIKeyKey    string `envconfig:"API_KEY_KEY"`
		TokenKey     string `envconfig:"ANALYTICS_TOKEN_KEY"`
	}

	API struct {
		Dev        bool `envconfig:"DEV" default:"false"`
		DB         DB
		Auth       Auth
		HTTP       HTTP
		Server     Server
		Analytics  Analytics
		Scheduling Scheduling
		SSM        SSM

		BuildInfo BuildInfo `ignored:"true"`
	}

	BuildInfo struct {
		Version   string
		BuildTime string
	}
)

func NewAPI(ctx context.Context) (*API, error) {
	var res API
	if err := envconfig.Process("SRS", &res); err != nil {
		return nil, fmt.Errorf("parse api environment: %w", err)
	}

	if !res.Dev {
		if err := resolveSecrets(ctx, &res); err != nil {
			return nil, fmt.Errorf("resolve secrets: %w", err)
		}
	}

	if res.HTTP.JWT.Secret == "" {
		if !res.Dev {
			return nil, errors.New("jwt secret is required")
		}
		res.HTTP.JWT.Secret = "dev-secret"
	}
	if res.Auth.APIKey == "" {
		if !res.Dev {
			return nil, errors.New("api key is required")
		}
		res.Auth.APIKey = "dev-api-key"
	}

	return &res, nil
}

func resolveSecrets(ctx context.Context, conf *API) error {
	keys := make([]string, 0, 3) //nolint:mnd // up to three secret parameters
	if conf.HTTP.JWT.Secret == "" && conf.SSM.JWTSecretKey != "" {
		keys = append(keys, conf.SSM.JWTSecretKey)
	}
	if conf.Auth.APIKey == "" && conf.SSM.APIKeyKey != "" {
		keys = append(keys, conf.SSM.APIKeyKey)
	}
	if conf.Analytics.Token == "" && conf.SSM.TokenKey != "" {
		keys = append(keys, conf.SSM.TokenKey)
	}
	if len(keys) == 0 {
		return nil
	}

	params, err := FetchAWSParams(ctx, keys...)
	if err != nil {
		return fmt.Errorf("fetch aws params: %w", err)
	}

	if v, ok := params[conf.SSM.JWTSecretKey]; ok {
		conf.HTTP.JWT.Secret = v
	}
	if v, ok := params[conf.SSM.APIKeyKey]; ok {
		conf.Auth.APIKey = v
	}
	if v, ok := params[conf.SSM.TokenKey]; ok {
		conf.Analytics.Token = v
	}

	return nil
}
