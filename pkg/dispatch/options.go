package dispatch

import (
	"github.com/cuemby/burrow/pkg/config"
)

// ParseOptions reads the recognized dispatcher keys from cfg on top of
// the defaults
func ParseOptions(cfg *config.Config) (Options, error) {
	name, err := cfg.String("serviceName")
	if err != nil {
		return Options{}, err
	}
	o := DefaultOptions(name)

	if o.MaxPendingRequests, err = cfg.IntDefault("maxPendingRequests", o.MaxPendingRequests); err != nil {
		return Options{}, err
	}
	if o.MaxAttempts, err = cfg.IntDefault("maxAttempts", o.MaxAttempts); err != nil {
		return Options{}, err
	}
	if cfg.Has("delaysAfterFailure") {
		if o.DelaysAfterFailure, err = cfg.Durations("delaysAfterFailure"); err != nil {
			return Options{}, err
		}
	}
	if o.EarlyProcessingGracePeriod, err = cfg.DurationDefault("requestEarlyProcessingGracePeriod", o.EarlyProcessingGracePeriod); err != nil {
		return Options{}, err
	}
	if o.MaxSleepTime, err = cfg.DurationDefault("maxSleepTime", o.MaxSleepTime); err != nil {
		return Options{}, err
	}
	if o.PoolSize, err = cfg.IntDefault("requestExecutorPoolSize", o.PoolSize); err != nil {
		return Options{}, err
	}

	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}
