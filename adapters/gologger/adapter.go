package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultName is the logger name the client resolves when none is given.
const DefaultName = "itrp"

// Resolve uses deterministic precedence provider > logger > nop. An empty
// name falls back to DefaultName.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if name == "" {
		name = DefaultName
	}
	return glog.Resolve(name, provider, logger)
}

// Component returns the logger for one client component, such as
// "itrp.jobs" or "itrp.attachments".
func Component(provider glog.LoggerProvider, logger glog.Logger, component string) glog.Logger {
	name := DefaultName
	if component != "" {
		name = DefaultName + "." + component
	}
	_, resolved := Resolve(name, provider, logger)
	return resolved
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair for the background job runner and
// returns the go-job bridges next to it.
func ResolveForJob(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(DefaultName+".jobs", provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
