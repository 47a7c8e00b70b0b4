package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the runner settings. Every setting can be given as flag or
// as RHYME_* environment variable, also read from a .env file.
type Config struct {
	Query     string
	QueryFile string
	DataFile  string
	Format    string
	Output    string
	JQ        string
	Explain   bool
	Debug     bool
	Stream    bool
	Requests  bool
	CacheSize int
	Timeout   time.Duration
}

// Output formats.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rhyme", pflag.ContinueOnError)
	fs.StringP("query", "q", "", "query as rh text")
	fs.StringP("query-file", "f", "", "query file: .json for a JSON query document, rh text otherwise")
	fs.StringP("data", "d", "-", "data file (.json, .yaml, .yml); - reads stdin")
	fs.String("format", FormatJSON, "output format: json, yaml or msgpack")
	fs.StringP("output", "o", "", "output file, stdout when empty")
	fs.String("jq", "", "jq filter applied to every result")
	fs.Bool("explain", false, "print the plan and evaluation trace to stderr")
	fs.Bool("debug", false, "enable debug logging")
	fs.Bool("stream", false, "evaluate the query against every document of an NDJSON stream")
	fs.Bool("requests", false, `serve NDJSON requests {"query": ..., "data": ...} from stdin`)
	fs.Int("cache-size", 128, "number of compiled queries kept in requests mode")
	fs.Duration("timeout", 30*time.Second, "evaluation timeout, 0 disables it")
	return fs
}

func initEnvs(v *viper.Viper) {
	_ = godotenv.Overload()
	v.SetEnvPrefix("RHYME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// loadConfig parses args and merges them with the environment. Flags given
// explicitly win over environment variables.
func loadConfig(args []string) (Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	initEnvs(v)
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	conf := Config{
		Query:     v.GetString("query"),
		QueryFile: v.GetString("query-file"),
		DataFile:  v.GetString("data"),
		Format:    strings.ToLower(v.GetString("format")),
		Output:    v.GetString("output"),
		JQ:        v.GetString("jq"),
		Explain:   v.GetBool("explain"),
		Debug:     v.GetBool("debug"),
		Stream:    v.GetBool("stream"),
		Requests:  v.GetBool("requests"),
		CacheSize: v.GetInt("cache-size"),
		Timeout:   v.GetDuration("timeout"),
	}
	if conf.Query == "" && fs.NArg() > 0 {
		conf.Query = fs.Arg(0)
	}
	return conf, conf.validate()
}

func (c Config) validate() error {
	switch c.Format {
	case FormatJSON, FormatYAML, FormatMsgpack:
	default:
		return fmt.Errorf("unknown output format %q", c.Format)
	}
	if c.Requests {
		return nil
	}
	if c.Query == "" && c.QueryFile == "" {
		return fmt.Errorf("no query given: use --query, --query-file or a positional argument")
	}
	if c.Query != "" && c.QueryFile != "" {
		return fmt.Errorf("--query and --query-file are mutually exclusive")
	}
	return nil
}
