// Package config loads the network configuration record.
//
// A config file mirrors the host tool's networks object, in YAML or JSON:
//
//	defaultNetwork: hardhat
//	networks:
//	  hardhat:
//	    chainId: 1
//	    hardfork: london
//	    initialBaseFeePerGas: 0
//	    loggingEnabled: true
//	    accounts:
//	      mnemonic: "test test test test test test test test test test test junk"
//	      path: "m/44'/60'/0'"
//	      count: 10
//
// Every network is decoded on top of params.DefaultNetworkConfig, so omitted
// fields keep their defaults. Before environment overrides are applied, .env
// files are loaded in this order:
//
//  1. ENV_FILE (if set, only this file is loaded)
//  2. .env.local
//  3. .env
//
// Variables already present in the environment are never overwritten.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Siasom1/devnet/params"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the variable holding the config file path.
const ConfigPathEnv = "DEVNET_CONFIG"

type fileConfig struct {
	DefaultNetwork string               `yaml:"defaultNetwork"`
	Networks       map[string]yaml.Node `yaml:"networks"`
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load builds the configuration: defaults, then the file at path (if any),
// then environment overrides. The result is validated.
func Load(path string) (*params.Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := params.DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := decodeInto(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates a config document without consulting the
// environment.
func Parse(data []byte) (*params.Config, error) {
	cfg := params.DefaultConfig()
	if err := decodeInto(data, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeInto(data []byte, cfg *params.Config) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	if fc.DefaultNetwork != "" {
		cfg.DefaultNetwork = fc.DefaultNetwork
	}

	for name, node := range fc.Networks {
		n, ok := cfg.Networks[name]
		if !ok || n == nil {
			n = params.DefaultNetworkConfig()
		}
		if err := decodeNetwork(&node, n); err != nil {
			return fmt.Errorf("networks.%s: %w", name, err)
		}
		cfg.Networks[name] = n
	}
	return nil
}

// decodeNetwork decodes node over n, rejecting unknown field names.
func decodeNetwork(node *yaml.Node, n *params.NetworkConfig) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(n)
}

// GetConfigPath returns DEVNET_CONFIG or defaultPath.
func GetConfigPath(defaultPath string) string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	return defaultPath
}

// ------------------------------------------------------------
// Environment overrides
// ------------------------------------------------------------

// applyEnvOverrides applies `env` tags to the config and to its default
// network.
func applyEnvOverrides(cfg *params.Config) error {
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	n, ok := cfg.Networks[cfg.DefaultNetwork]
	if !ok || n == nil {
		return nil
	}
	return ApplyEnv(n)
}

// ApplyEnv sets every field of the struct pointed to by target that carries an
// `env:"NAME"` tag and whose variable is set. Nested structs are walked.
func ApplyEnv(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("apply env: target must be a pointer to struct, got %T", target)
	}
	return applyEnvToStruct(v.Elem())
}

func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			if field.Kind() == reflect.Struct {
				if err := applyEnvToStruct(field); err != nil {
					return err
				}
			}
			continue
		}

		envVal, ok := os.LookupEnv(envTag)
		if !ok || envVal == "" {
			continue
		}
		if err := setFieldFromString(field, envVal); err != nil {
			return fmt.Errorf("env %s: %w", envTag, err)
		}
	}
	return nil
}

func setFieldFromString(field reflect.Value, val string) error {
	val = strings.TrimSpace(val)

	switch field.Kind() {
	case reflect.String:
		field.SetString(val)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(val)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(val, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
