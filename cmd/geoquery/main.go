// Command geoquery publishes one search query on the bridge topic and prints
// the matching response.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/geobridge"
)

type options struct {
	configPath string
	country    string
	text       string
	page       uint
	limit      uint
	timeout    time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("GEOBRIDGE_CONFIG"), "path to a YAML config file")
	flag.StringVar(&opts.country, "country", "", "country code; searches localities when set, countries otherwise")
	flag.StringVar(&opts.text, "q", "", "free-text filter")
	flag.UintVar(&opts.page, "page", 0, "page number, 0 leaves it to the lookup service")
	flag.UintVar(&opts.limit, "limit", 0, "page size, 0 leaves it to the lookup service")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "how long to wait for the response")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "geoquery:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	conf, err := geobridge.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	logger := geobridge.NewSlogServiceLogger(slog.New(geobridge.NewSlogHandler("error", conf.LogFormat, os.Stderr)))
	q, err := buildQuery(opts)
	if err != nil {
		return err
	}

	tr, err := geobridge.DefaultTransports().Build(ctx, clientConfig(conf, q.CorrelationID()), geobridge.NewWatermillLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		_ = tr.Subscriber.Close()
		_ = tr.Publisher.Close()
	}()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	messages, err := tr.Subscriber.Subscribe(ctx, conf.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", conf.Topic, err)
	}

	pub, err := geobridge.NewPublisher(tr.Publisher, conf.Topic, nil)
	if err != nil {
		return err
	}
	if err := pub.PublishQuery(ctx, q); err != nil {
		return err
	}

	msg, err := awaitResponse(ctx, messages, q.CorrelationID())
	if err != nil {
		return err
	}
	return render(out, q.Kind(), msg.Payload)
}

// clientConfig moves the client into a subscriber group of its own. Sharing
// the bridge's group would make the broker split the topic between them, so
// either side could swallow the other's message.
func clientConfig(conf *geobridge.Config, queryID string) *geobridge.Config {
	c := *conf
	c.SubscriberGroup = "geoquery-" + queryID
	c.SubscriberEphemeral = true
	return &c
}

func buildQuery(opts options) (geobridge.Query, error) {
	id := geobridge.CreateQueryID()
	if opts.country != "" {
		return geobridge.NewLocalityQuery(id, geobridge.MethodSearchLocality, opts.country, opts.text, uint32(opts.page), uint32(opts.limit))
	}
	return geobridge.NewCountryQuery(id, geobridge.MethodSearchCountry, opts.text, uint32(opts.page), uint32(opts.limit))
}

// awaitResponse skips everything on the topic except the response carrying
// queryID, including the query itself on transports that self-deliver.
func awaitResponse(ctx context.Context, messages <-chan *message.Message, queryID string) (*message.Message, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("no response for query %s", queryID)
			}
			return nil, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil, errors.New("subscription closed")
			}
			msg.Ack()
			if msg.Metadata.Get(geobridge.MetadataKeySchema) == "" {
				continue
			}
			if msg.Metadata.Get(geobridge.MetadataKeyQueryID) == queryID {
				return msg, nil
			}
		}
	}
}

func render(out io.Writer, kind geobridge.QueryKind, payload []byte) error {
	// Decoding through the model enforces the response invariants first.
	if _, err := geobridge.NewEncoder(nil).DecodeResponse(kind, payload); err != nil {
		return err
	}

	name := geobridge.SchemaCountrySearchResponse
	if kind == geobridge.KindLocality {
		name = geobridge.SchemaLocalitySearchResponse
	}
	msg, err := geobridge.DefaultSchemas().NewMessage(name)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return err
	}
	body, err := protojson.MarshalOptions{Multiline: true, UseProtoNames: true, EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}
