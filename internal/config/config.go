// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

const (
	StateStorePostgres = "postgres"
	StateStoreValkey   = "valkey"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database    Database    `yaml:"database"`
	ValKey      ValKey      `yaml:"valkey"`
	Migrate     Migrate     `yaml:"migrate"`
	Housekeeper Housekeeper `yaml:"housekeeper"`
	Identity    Identity    `yaml:"identity"`
	Tokens      Tokens      `yaml:"tokens"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	SSLMode  string              `yaml:"sslMode"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	Prefix    string              `yaml:"prefix" default:"identity"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}

type Migrate struct {
	Source string `yaml:"source" default:"embedded"`
}

type Housekeeper struct {
	TriggerInterval time.Duration `yaml:"triggerInterval" default:"10m"`
}

// Identity configures sign-in through the external OpenID provider.
type Identity struct {
	DiscoveryURL string              `yaml:"discoveryURL" default:"https://accounts.google.com/.well-known/openid-configuration"`
	ClientID     commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	// RedirectURI is {HOST}/v1/google-identity/signin-callback/ of the public address.
	RedirectURI string   `yaml:"redirectURI"`
	Scopes      []string `yaml:"scopes"` // openid, email and profile when empty
	PKCE        bool     `yaml:"pkce"`

	DiscoveryCacheTTL time.Duration `yaml:"discoveryCacheTTL" default:"1h"`
	KeysCacheTTL      time.Duration `yaml:"keysCacheTTL" default:"1h"`
	StateTTL          time.Duration `yaml:"stateTTL" default:"15m"`
	HTTPTimeout       time.Duration `yaml:"httpTimeout" default:"10s"`
	StateStore        string        `yaml:"stateStore" default:"postgres"`
}

// Tokens configures the locally issued access and refresh tokens.
type Tokens struct {
	Issuer        string              `yaml:"issuer" default:"identity"`
	SigningSecret commoncfg.SourceRef `yaml:"signingSecret"`
	AccessTTL     time.Duration       `yaml:"accessTTL" default:"5m"`
	RefreshTTL    time.Duration       `yaml:"refreshTTL" default:"24h"`
}
