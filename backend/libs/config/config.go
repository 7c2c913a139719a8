package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFileEnv     = "CONFIG_FILE"
	dotenvFileEnv     = "DOTENV_FILE"
	defaultDotenvFile = ".env"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves one environment key.
type LookupFunc func(key string) (string, bool)

// Loader fills configuration structs from an optional .env file, an optional YAML file and the
// environment, in that order of increasing precedence.
//
// Struct fields map to ENV keys through an `env:"KEY"` tag or, without one, the upper-cased
// field path joined by underscores (Cache.TTL becomes CACHE_TTL). Fields tagged
// `required:"true"` must be non-zero once every source was applied.
type Loader struct {
	lookup     LookupFunc
	readFile   func(path string) ([]byte, error)
	loadDotenv bool
}

// NewLoader returns a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv, readFile: os.ReadFile, loadDotenv: true}
}

// WithLookup replaces the environment source and disables .env loading.
func (l *Loader) WithLookup(lookup LookupFunc) *Loader {
	l.lookup = lookup
	l.loadDotenv = false
	return l
}

// LoadConfig applies NewLoader().Load to target.
func LoadConfig(target interface{}) error {
	return NewLoader().Load(target)
}

// Load fills target, which must be a pointer to a struct.
func (l *Loader) Load(target interface{}) error {
	if target == nil {
		return errors.New("config: target is nil")
	}
	root := reflect.ValueOf(target)
	if root.Kind() != reflect.Ptr || root.Elem().Kind() != reflect.Struct {
		return errors.New("config: target must be pointer to struct")
	}

	if l.loadDotenv {
		if err := loadDotenvFile(); err != nil {
			return err
		}
	}
	if path, ok := l.lookup(configFileEnv); ok && strings.TrimSpace(path) != "" {
		data, err := l.readFile(path)
		if err != nil {
			return fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	}

	var missing []string
	err := walk(root.Elem(), "", func(field reflect.Value, key string, required bool) error {
		if raw, ok := l.lookup(key); ok {
			if err := parseInto(field, raw); err != nil {
				return fmt.Errorf("config: parse %s: %w", key, err)
			}
		}
		if required && field.IsZero() {
			missing = append(missing, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required %s", strings.Join(missing, ", "))
	}
	return nil
}

// loadDotenvFile reads DOTENV_FILE, or ./.env when present, without overriding variables that
// are already set.
func loadDotenvFile() error {
	path, explicit := os.LookupEnv(dotenvFileEnv)
	if !explicit || path == "" {
		path, explicit = defaultDotenvFile, false
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat dotenv: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load dotenv: %w", err)
	}
	return nil
}

type visitFunc func(field reflect.Value, key string, required bool) error

// walk visits every settable leaf field of v with its ENV key.
func walk(v reflect.Value, prefix string, visit visitFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, field := t.Field(i), v.Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Anonymous {
			if err := walk(field, prefix, visit); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "-" {
			continue
		}
		key := envKey(prefix, sf.Name)
		if tag != "" {
			key = envKey("", tag)
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := walk(field, key, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(field, key, sf.Tag.Get("required") == "true"); err != nil {
			return err
		}
	}
	return nil
}

func envKey(prefix, name string) string {
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func parseInto(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	bits := 0
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		bits = field.Type().Bits()
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, bits)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, bits)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), bits)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// splitList parses a comma separated list, dropping blank entries.
func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
