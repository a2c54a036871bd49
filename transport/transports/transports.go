// Package transports registers every bundled transport with the default
// registry. Import it for side effects.
package transports

import (
	_ "github.com/drblury/geobridge/transport/aws"
	_ "github.com/drblury/geobridge/transport/channel"
	_ "github.com/drblury/geobridge/transport/http"
	_ "github.com/drblury/geobridge/transport/kafka"
	_ "github.com/drblury/geobridge/transport/nats"
	_ "github.com/drblury/geobridge/transport/rabbitmq"
)
