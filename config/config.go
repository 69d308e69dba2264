package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/issuer-service/pkg/storage"
)

const (
	DefaultConfigPath = "config/dev.toml"
	ConfigPathEnv     = "CONFIG_PATH"
	ConfigExtension   = ".toml"

	IssuerKeyPasswordEnv = "ISSUER_KEY_PASSWORD"

	DefaultServiceEndpoint   = "http://localhost:3000"
	DefaultResolutionTimeout = 10 * time.Second
)

type Environment string

const (
	EnvironmentDev  Environment = "dev"
	EnvironmentTest Environment = "test"
	EnvironmentProd Environment = "prod"
)

type IssuerServiceConfig struct {
	conf.Version
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	Environment        Environment   `toml:"env" conf:"default:dev"`
	APIHost            string        `toml:"api_host" conf:"default:0.0.0.0:3000"`
	JaegerHost         string        `toml:"jaeger_host" conf:"default:http://jaeger:14268/api/traces"`
	JaegerEnabled      bool          `toml:"jaeger_enabled" conf:"default:false"`
	ReadTimeout        time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout       time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	LogLocation        string        `toml:"log_location"`
	LogLevel           string        `toml:"log_level" conf:"default:info"`
	EnableAllowAllCORS bool          `toml:"enable_allow_all_cors" conf:"default:false"`
}

// ServicesConfig represents configurable properties for the components of the issuer service
type ServicesConfig struct {
	// a single storage provider serves all services
	StorageProvider string           `toml:"storage"`
	StorageOptions  []storage.Option `toml:"storage_option"`
	ServiceEndpoint string           `toml:"service_endpoint"`

	AppLevelEncryptionConfiguration EncryptionConfig `toml:"app_level_encryption_configuration"`

	// instantiated in this order
	IssuerConfig            IssuerConfig            `toml:"issuer"`
	DIDConfig               DIDServiceConfig        `toml:"did"`
	CredentialRequestConfig CredentialRequestConfig `toml:"credential_request"`
	IssuanceConfig          IssuanceConfig          `toml:"issuance"`
}

// BaseServiceConfig represents configurable properties for a specific component of the issuer service
type BaseServiceConfig struct {
	Name            string `toml:"name"`
	ServiceEndpoint string `toml:"service_endpoint"`
}

// EncryptionConfig points at a KMS master key. When MasterKeyURI is set every stored value is envelope encrypted.
type EncryptionConfig struct {
	MasterKeyURI       string `toml:"master_key_uri"`
	KMSCredentialsPath string `toml:"kms_credentials_path"`
}

func (e EncryptionConfig) GetMasterKeyURI() string {
	return e.MasterKeyURI
}

func (e EncryptionConfig) GetKMSCredentialsPath() string {
	return e.KMSCredentialsPath
}

func (e EncryptionConfig) EncryptionEnabled() bool {
	return e.MasterKeyURI != ""
}

type IssuerConfig struct {
	BaseServiceConfig
	// Used by a KDF whose key encrypts issuer private keys at rest. The password is salted before usage.
	KeyPassword string `toml:"key_password" conf:"mask"`
}

type DIDServiceConfig struct {
	BaseServiceConfig
	LocalResolutionMethods   []string `toml:"local_resolution_methods"`
	UniversalResolverURL     string   `toml:"universal_resolver_url"`
	UniversalResolverMethods []string `toml:"universal_resolver_methods"`
}

type CredentialRequestConfig struct {
	BaseServiceConfig
}

type IssuanceConfig struct {
	BaseServiceConfig
	// bound on holder DID resolution
	ResolutionTimeout time.Duration `toml:"resolution_timeout"`
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
// A nil config with a nil error means help or version output was requested.
func LoadConfig(path string) (*IssuerServiceConfig, error) {
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	var config IssuerServiceConfig

	// parse and apply defaults
	if err := conf.Parse(os.Args[1:], ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)
			return nil, nil

		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if defaultConfig {
		config.Services = defaultServicesConfig()
	} else if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, errors.Wrapf(err, "could not load config: %s", path)
	}

	applyDefaults(&config)
	if password, ok := os.LookupEnv(IssuerKeyPasswordEnv); ok && password != "" {
		config.Services.IssuerConfig.KeyPassword = password
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func defaultServicesConfig() ServicesConfig {
	return ServicesConfig{
		StorageProvider: string(storage.Bolt),
		ServiceEndpoint: DefaultServiceEndpoint,
		IssuerConfig: IssuerConfig{
			BaseServiceConfig: BaseServiceConfig{Name: "issuer"},
			KeyPassword:       "default-password",
		},
		DIDConfig: DIDServiceConfig{
			BaseServiceConfig:      BaseServiceConfig{Name: "did"},
			LocalResolutionMethods: []string{"key", "web"},
		},
		CredentialRequestConfig: CredentialRequestConfig{
			BaseServiceConfig: BaseServiceConfig{Name: "credential_request"},
		},
		IssuanceConfig: IssuanceConfig{
			BaseServiceConfig: BaseServiceConfig{Name: "issuance"},
			ResolutionTimeout: DefaultResolutionTimeout,
		},
	}
}

// applyDefaults fills values a TOML file may leave out.
func applyDefaults(config *IssuerServiceConfig) {
	services := &config.Services
	if services.StorageProvider == "" {
		services.StorageProvider = string(storage.Bolt)
	}
	if services.ServiceEndpoint == "" {
		services.ServiceEndpoint = DefaultServiceEndpoint
	}
	if services.IssuanceConfig.ResolutionTimeout <= 0 {
		services.IssuanceConfig.ResolutionTimeout = DefaultResolutionTimeout
	}
	if len(services.DIDConfig.LocalResolutionMethods) == 0 && services.DIDConfig.UniversalResolverURL == "" {
		services.DIDConfig.LocalResolutionMethods = []string{"key", "web"}
	}
}

func (c *IssuerServiceConfig) validate() error {
	if !storage.IsStorageAvailable(storage.Type(c.Services.StorageProvider)) {
		return errors.Errorf("unsupported storage provider: %s", c.Services.StorageProvider)
	}
	if c.Services.IssuerConfig.KeyPassword == "" {
		return errors.Errorf("an issuer key password is required, set services.issuer.key_password or %s", IssuerKeyPasswordEnv)
	}
	return nil
}
