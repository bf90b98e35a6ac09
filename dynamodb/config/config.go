// Package config holds connection and provisioning settings for the adapter.
//
// Settings are resolved in order: defaults, then a ddb.yaml file found by
// walking up from the working directory, then DDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the config file searched for by Load.
const FileName = "ddb.yaml"

// Settings configures the DynamoDB connection. The defaults target a local
// DynamoDB on localhost:8000 and are not meant for production.
type Settings struct {
	Host string `yaml:"host" validate:"required_without=Endpoint"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// Endpoint overrides Host and Port with a full URL.
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	Region          string `yaml:"region" validate:"required"`
	AccessKeyID     string `yaml:"accessKeyId" validate:"required"`
	SecretAccessKey string `yaml:"secretAccessKey" validate:"required"`

	// Provisioned throughput for tables created by the adapter.
	ReadCapacityUnits  int64 `yaml:"readCapacity" validate:"min=1"`
	WriteCapacityUnits int64 `yaml:"writeCapacity" validate:"min=1"`

	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}

func Default() Settings {
	return Settings{
		Host:               "localhost",
		Port:               8000,
		Region:             "ap-southeast-1",
		AccessKeyID:        "fake",
		SecretAccessKey:    "fake",
		ReadCapacityUnits:  5,
		WriteCapacityUnits: 10,
		LogLevel:           "info",
	}
}

// EndpointURL is the DynamoDB endpoint the client talks to.
func (s Settings) EndpointURL() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

func (s Settings) Throughput() table.Throughput {
	return table.Throughput{ReadCapacityUnits: s.ReadCapacityUnits, WriteCapacityUnits: s.WriteCapacityUnits}
}

var validate = validator.New()

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required", "required_without":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", field, map[string]string{"min": "at least", "max": "at most"}[e.Tag()], e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

// Load resolves settings. path names an explicit config file; when empty,
// ddb.yaml is searched for upward from the working directory and skipped
// if absent.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		path = findConfigFile(FileName)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DDB_HOST":              &s.Host,
		"DDB_ENDPOINT":          &s.Endpoint,
		"DDB_REGION":            &s.Region,
		"DDB_ACCESS_KEY_ID":     &s.AccessKeyID,
		"DDB_SECRET_ACCESS_KEY": &s.SecretAccessKey,
		"DDB_LOG_LEVEL":         &s.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	ints := map[string]*int64{
		"DDB_READ_CAPACITY":  &s.ReadCapacityUnits,
		"DDB_WRITE_CAPACITY": &s.WriteCapacityUnits,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup("DDB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DDB_PORT: %w", err)
		}
		s.Port = port
	}
	return nil
}

// findConfigFile searches for name walking up from current directory.
func findConfigFile(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
