// Command attestctl talks to a running attestd over its REST API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"ZKAttest-Chain/sdk/go/attest"
)

const defaultServer = "http://127.0.0.1:8080"

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	requestFlags := []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Value: "-", Usage: "JSON request file, - reads stdin"},
	}
	proveFlags := []cli.Flag{
		&cli.StringFlag{Name: "idempotency-key", Usage: "reuse an existing job for the same key"},
		&cli.BoolFlag{Name: "wait", Usage: "block until the proving job finishes"},
		&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "poll interval used with --wait"},
	}
	filterFlags := []cli.Flag{
		&cli.StringSliceFlag{Name: "status", Usage: "filter by job status"},
		&cli.StringSliceFlag{Name: "kind", Usage: "filter by attestation kind"},
		&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "substring match on id, program or last error"},
	}

	return &cli.App{
		Name:      "attestctl",
		Usage:     "Submit attestation requests and inspect proving jobs",
		Reader:    in,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: defaultServer, EnvVars: []string{"ATTEST_SERVER"}, Usage: "attestd base URL"},
			&cli.StringFlag{Name: "api-key", EnvVars: []string{"ATTEST_API_KEY"}, Usage: "API key sent as a bearer token"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall request timeout"},
		},
		Commands: []*cli.Command{
			{
				Name:   "execute",
				Usage:  "Validate a request and print its public values",
				Flags:  requestFlags,
				Action: execute,
			},
			{
				Name:   "prove",
				Usage:  "Validate a request and enqueue a proving job",
				Flags:  append(append([]cli.Flag{}, requestFlags...), proveFlags...),
				Action: prove,
			},
			{
				Name:   "bundle",
				Usage:  "Attest a collateral request together with its balance and liability records",
				Flags:  append(append([]cli.Flag{&cli.BoolFlag{Name: "prove", Usage: "enqueue proving jobs"}}, requestFlags...), proveFlags[0]),
				Action: bundle,
			},
			{
				Name:      "status",
				Usage:     "Show a proving job",
				ArgsUsage: "<job-id>",
				Flags:     proveFlags[1:],
				Action:    status,
			},
			{
				Name:  "jobs",
				Usage: "List proving jobs",
				Flags: append(append([]cli.Flag{}, filterFlags...),
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.IntFlag{Name: "offset"},
					&cli.StringFlag{Name: "format", Value: "json", Usage: "output format: json or csv"},
				),
				Action: jobs,
			},
			{
				Name:   "stats",
				Usage:  "Show aggregated job counts",
				Flags:  filterFlags,
				Action: stats,
			},
		},
	}
}

func execute(c *cli.Context) error {
	return attestWith(c, attest.AttestOptions{})
}

func prove(c *cli.Context) error {
	return attestWith(c, attest.AttestOptions{Prove: true, IdempotencyKey: c.String("idempotency-key")})
}

func attestWith(c *cli.Context, opts attest.AttestOptions) error {
	client, ctx, cancel, err := clientFrom(c)
	if err != nil {
		return err
	}
	defer cancel()

	request, err := readRequest(c)
	if err != nil {
		return err
	}
	result, err := client.Attest(ctx, request, opts)
	if err != nil {
		return err
	}
	if opts.Prove && c.Bool("wait") && result.Job != nil {
		job, err := client.WaitForJob(ctx, result.Job.ID, c.Duration("interval"))
		if err != nil {
			return err
		}
		result.Job = &job
	}
	return printJSON(c.App.Writer, result)
}

func bundle(c *cli.Context) error {
	client, ctx, cancel, err := clientFrom(c)
	if err != nil {
		return err
	}
	defer cancel()

	request, err := readRequest(c)
	if err != nil {
		return err
	}
	result, err := client.AttestCollateralBundle(ctx, request, attest.AttestOptions{
		Prove:          c.Bool("prove"),
		IdempotencyKey: c.String("idempotency-key"),
	})
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, result)
}

func status(c *cli.Context) error {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return errors.New("job id is required")
	}
	client, ctx, cancel, err := clientFrom(c)
	if err != nil {
		return err
	}
	defer cancel()

	var job attest.Job
	if c.Bool("wait") {
		job, err = client.WaitForJob(ctx, id, c.Duration("interval"))
	} else {
		job, err = client.GetJob(ctx, id)
	}
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, job)
}

func jobs(c *cli.Context) error {
	client, ctx, cancel, err := clientFrom(c)
	if err != nil {
		return err
	}
	defer cancel()

	filter := filterFrom(c)
	filter.Limit = c.Int("limit")
	filter.Offset = c.Int("offset")
	list, err := client.ListJobs(ctx, filter)
	if err != nil {
		return err
	}
	switch strings.ToLower(c.String("format")) {
	case "csv":
		return printCSV(c.App.Writer, list)
	case "", "json":
		return printJSON(c.App.Writer, list)
	default:
		return fmt.Errorf("unsupported format %q", c.String("format"))
	}
}

type jobRow struct {
	ID        string `csv:"id"`
	Kind      string `csv:"kind"`
	Program   string `csv:"program"`
	Status    string `csv:"status"`
	Attempts  int    `csv:"attempts"`
	ErrorCode string `csv:"error_code"`
	Verified  bool   `csv:"verified"`
	UpdatedAt int64  `csv:"updated_at"`
}

func printCSV(w io.Writer, list []attest.Job) error {
	rows := make([]jobRow, 0, len(list))
	for _, job := range list {
		rows = append(rows, jobRow{
			ID:        job.ID,
			Kind:      job.Kind,
			Program:   job.Program,
			Status:    job.Status,
			Attempts:  job.Attempts,
			ErrorCode: job.ErrorCode,
			Verified:  job.Result != nil && job.Result.Verified,
			UpdatedAt: job.UpdatedAt,
		})
	}
	return gocsv.Marshal(rows, w)
}

func stats(c *cli.Context) error {
	client, ctx, cancel, err := clientFrom(c)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := client.JobStats(ctx, filterFrom(c))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, result)
}

func clientFrom(c *cli.Context) (*attest.Client, context.Context, context.CancelFunc, error) {
	client, err := attest.NewClient(c.String("server"), &http.Client{})
	if err != nil {
		return nil, nil, nil, err
	}
	client.SetAPIKey(c.String("api-key"))
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	return client, ctx, cancel, nil
}

func filterFrom(c *cli.Context) attest.JobFilter {
	return attest.JobFilter{
		Statuses: c.StringSlice("status"),
		Kinds:    c.StringSlice("kind"),
		Query:    c.String("query"),
	}
}

// readRequest loads the request body and checks it is well-formed JSON.
func readRequest(c *cli.Context) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path := c.String("file"); path == "" || path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("request is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
