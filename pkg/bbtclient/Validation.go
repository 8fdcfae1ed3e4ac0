package bbtclient

import (
	"errors"

	"github.com/wostzone/bbtclient-go/api"
)

// Argument validation errors
var (
	ErrMissingDevice   = errors.New("device is required")
	ErrMissingService  = errors.New("service is required")
	ErrMissingResource = errors.New("resource is required")
	ErrMissingOwner    = errors.New("owner is required")
	ErrMissingData     = errors.New("data is required")
	ErrMissingHandler  = errors.New("a message handler is required for read access")
	ErrNegativeTTL     = errors.New("ttl must not be negative")
	ErrInvalidLimit    = errors.New("limit must be positive")
)

func defaultWildcard(name string) string {
	if name == "" {
		return api.Wildcard
	}
	return name
}

// ValidateSubscribe checks the subscription arguments and fills in the defaults
// Returns the completed arguments or the validation error
func ValidateSubscribe(args api.SubscribeArgs) (api.SubscribeArgs, error) {
	if args.Device == "" {
		return args, ErrMissingDevice
	}
	args.Service = defaultWildcard(args.Service)
	args.Resource = defaultWildcard(args.Resource)
	if args.TTL < 0 {
		return args, ErrNegativeTTL
	}
	if args.Read == nil {
		args.Read = api.Bool(true)
	}
	if *args.Read && args.Handler == nil {
		return args, ErrMissingHandler
	}
	return args, nil
}

// ValidateAddress checks the resource address and fills in wildcard defaults
func ValidateAddress(addr api.ResourceAddress) (api.ResourceAddress, error) {
	if addr.Device == "" {
		return addr, ErrMissingDevice
	}
	addr.Service = defaultWildcard(addr.Service)
	addr.Resource = defaultWildcard(addr.Resource)
	return addr, nil
}

// ValidatePublish checks the publish or write arguments. All fields except the callback are required.
func ValidatePublish(args api.PublishArgs) error {
	switch {
	case args.Device == "":
		return ErrMissingDevice
	case args.Service == "":
		return ErrMissingService
	case args.Resource == "":
		return ErrMissingResource
	case args.Data == nil:
		return ErrMissingData
	}
	return nil
}

// ValidateRead checks the read arguments and applies the default limit of 1
func ValidateRead(args api.ReadArgs) (api.ReadArgs, error) {
	switch {
	case args.Owner == "":
		return args, ErrMissingOwner
	case args.Device == "":
		return args, ErrMissingDevice
	case args.Service == "":
		return args, ErrMissingService
	case args.Resource == "":
		return args, ErrMissingResource
	}
	if args.Limit == 0 {
		args.Limit = 1
	} else if args.Limit < 0 {
		return args, ErrInvalidLimit
	}
	return args, nil
}
