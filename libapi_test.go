package geobridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGatewayClient(t *testing.T) {
	_, err := NewGatewayClient(nil, nil)
	assert.ErrorIs(t, err, ErrConfigRequired)

	conf := DefaultConfig()
	conf.LookupBaseURL = "lookup.internal"
	_, err = NewGatewayClient(conf, nil)
	assert.Error(t, err)

	conf.LookupBaseURL = "http://lookup.internal/api/"
	conf.BreakerEnabled = true
	client, err := NewGatewayClient(conf, NopLogger())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestQueryConstructorsRejectMissingIDs(t *testing.T) {
	_, err := NewCountryQuery("", MethodSearchCountry, "fra", 0, 0)
	assert.Error(t, err)

	q, err := NewLocalityQuery("q1", MethodSearchLocality, "FR", "ly", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, KindLocality, q.Kind())
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	q, err := NewCountryQuery("q1", MethodSearchCountry, "fra", 2, 5)
	require.NoError(t, err)

	raw, err := NewEncoder(nil).EncodeQuery(q)
	require.NoError(t, err)

	res := NewDecoder(nil, nil).Decode(raw)
	require.Equal(t, "matched", res.Outcome.String())
	assert.Equal(t, Query(q), res.Query)
}

type echoResolver struct{}

func (echoResolver) SearchCountries(_ context.Context, q CountryQuery) (CountrySearchResponse, error) {
	return CountrySearchResponse{QueryID: q.ID, Countries: []Country{{Code: "FR", Name: "France"}}, Pagination: Pagination{}.WithDefaults()}, nil
}

func (echoResolver) SearchLocalities(_ context.Context, q LocalityQuery) (LocalitySearchResponse, error) {
	return LocalitySearchResponse{}, errors.New("not used")
}

func TestServiceThroughFacade(t *testing.T) {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer ps.Close()

	conf := DefaultConfig()
	svc, err := NewService(conf, NopLogger(), context.Background(), ServiceDependencies{
		Resolver:         echoResolver{},
		TransportFactory: StaticTransport(Transport{Publisher: ps, Subscriber: ps}),
		MetricsRegistry:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	responses, err := ps.Subscribe(ctx, conf.Topic)
	require.NoError(t, err)

	go func() { _ = svc.Start(ctx) }()
	<-svc.Running()

	q, err := NewCountryQuery(CreateQueryID(), MethodSearchCountry, "fra", 0, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Responses().PublishQuery(ctx, q))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-responses:
			msg.Ack()
			if msg.Metadata.Get(MetadataKeySchema) == "" {
				continue
			}
			assert.Equal(t, q.ID, msg.Metadata.Get(MetadataKeyQueryID))
			resp, err := NewEncoder(nil).DecodeResponse(KindCountry, msg.Payload)
			require.NoError(t, err)
			assert.Equal(t, "France", resp.(CountrySearchResponse).Countries[0].Name)

			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			require.NoError(t, svc.Shutdown(shutdownCtx))
			return
		case <-timeout:
			t.Fatal("no response")
		}
	}
}

func TestJSONAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	raw, err := Marshal(payload)
	require.NoError(t, err)

	var back map[string]string
	require.NoError(t, Unmarshal(raw, &back))
	assert.Equal(t, payload, back)
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata(MetadataKeyQueryID, "q1")
	assert.Equal(t, "q1", md.QueryID())
}
