// Command rhyme evaluates a query against JSON or YAML data.
//
// Usage:
//
//	rhyme -q '{total: sum data.*.value, data.*.key: sum data.*.value}' -d data.json
//	rhyme -f query.json -d data.yaml --format yaml
//	cat docs.ndjson | rhyme --stream 'sum data.*.value'
//	cat requests.ndjson | rhyme --requests
//
// In requests mode every input line is an object {"query": ..., "data": ...}
// where query is rh text or a JSON query document; every output line is
// {"result": ...} or {"error": "..."}.
//
// Settings may also be given as RHYME_* environment variables (RHYME_FORMAT,
// RHYME_JQ, RHYME_EXPLAIN, ...) or in a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/sandrolain/gorhyme/pkg/cache"
	"github.com/sandrolain/gorhyme/pkg/compiler"
	"github.com/sandrolain/gorhyme/pkg/evaluator"
	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

func main() {
	conf, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "rhyme:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, conf, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "rhyme:", err)
		os.Exit(1)
	}
}

// runner carries the state shared by the evaluation modes.
type runner struct {
	conf   Config
	logger *slog.Logger
	eval   *evaluator.Evaluator
	filter *filter
	enc    *encoder
	stderr io.Writer
}

func run(ctx context.Context, conf Config, stdin io.Reader, stdout, stderr io.Writer) error {
	level := slog.LevelInfo
	if conf.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	out := stdout
	if conf.Output != "" {
		f, err := os.Create(conf.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	r := &runner{
		conf:   conf,
		logger: logger,
		eval: evaluator.New(
			evaluator.WithLogger(logger),
			evaluator.WithDebug(conf.Debug),
			evaluator.WithExplain(conf.Explain),
		),
		enc:    newEncoder(conf.Format, out),
		stderr: stderr,
	}
	if conf.JQ != "" {
		f, err := newFilter(conf.JQ)
		if err != nil {
			return err
		}
		r.filter = f
	}

	if conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Timeout)
		defer cancel()
	}

	if conf.Requests {
		return r.serve(ctx, stdin, out)
	}

	query, err := readQuery(conf)
	if err != nil {
		return err
	}
	plan, err := compiler.Compile(query, compiler.WithLogger(logger), compiler.WithDebug(conf.Debug))
	if err != nil {
		return err
	}
	if conf.Stream {
		return r.stream(ctx, plan, stdin)
	}

	data, err := readData(conf.DataFile, stdin)
	if err != nil {
		return err
	}
	res, err := r.eval.Eval(ctx, plan, data)
	if err != nil {
		return err
	}
	return r.emit(ctx, res.Value, res.Explain)
}

// stream evaluates plan against every document of an NDJSON stream.
// Failing documents are logged and skipped.
func (r *runner) stream(ctx context.Context, plan *planner.Plan, stdin io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := r.eval.EvalStream(ctx, plan, stdin)
	if err != nil {
		return err
	}
	n, failed := 0, 0
	for res := range ch {
		n++
		if res.Err != nil {
			var qe *types.Error
			if !errors.As(res.Err, &qe) {
				// decode or context error, the stream is over
				return res.Err
			}
			failed++
			r.logger.Error("evaluation failed", "document", n, "error", res.Err)
			continue
		}
		if err := r.emit(ctx, res.Value, res.Explain); err != nil {
			return err
		}
	}
	r.logger.Debug("stream done", "documents", n, "failed", failed)
	return nil
}

// emit filters and writes one result.
func (r *runner) emit(ctx context.Context, v interface{}, explain *evaluator.Explain) error {
	if explain != nil {
		fmt.Fprintf(r.stderr, "evaluation %s\n%s", explain.ID, explain.Plan)
		for _, line := range explain.Trace {
			fmt.Fprintf(r.stderr, "  %s\n", line)
		}
	}
	if r.filter != nil {
		filtered, err := r.filter.apply(ctx, v)
		if err != nil {
			return err
		}
		v = filtered
	}
	return r.enc.encode(v)
}

// serve answers NDJSON requests. Compiled queries are cached by their text.
func (r *runner) serve(ctx context.Context, stdin io.Reader, out io.Writer) error {
	plans := cache.New(r.conf.CacheSize, 0)
	resp := newEncoder(FormatJSON, out)
	next := types.NewDecoder(stdin)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		value, err := r.answer(ctx, plans, req)
		if err != nil {
			if err := resp.encode(types.ObjectOf("error", err.Error())); err != nil {
				return err
			}
			continue
		}
		if err := resp.encode(types.ObjectOf("result", value)); err != nil {
			return err
		}
	}
}

func (r *runner) answer(ctx context.Context, plans *cache.Cache, req interface{}) (interface{}, error) {
	query := types.Index(req, "query")
	if query == nil {
		return nil, fmt.Errorf("request without query")
	}

	var key string
	switch q := query.(type) {
	case string:
		key = "rh:" + q
	default:
		b, err := json.Marshal(q)
		if err != nil {
			return nil, err
		}
		key = "json:" + string(b)
	}
	plan, err := plans.GetOrCompile(key, func() (*planner.Plan, error) {
		return compiler.Compile(query, compiler.WithLogger(r.logger), compiler.WithDebug(r.conf.Debug))
	})
	if err != nil {
		return nil, err
	}

	res, err := r.eval.Eval(ctx, plan, types.Index(req, "data"))
	if err != nil {
		return nil, err
	}
	if r.filter != nil {
		return r.filter.apply(ctx, res.Value)
	}
	return res.Value, nil
}
