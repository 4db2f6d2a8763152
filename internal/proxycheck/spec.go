// Package proxycheck validates the upstream proxy before any browser
// launches: credential shape, reachability, and exit-node geography used to
// align the session timezone and geolocation.
package proxycheck

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ErrNoProxy is returned when neither a configured address nor the
// environment supplies a proxy.
var ErrNoProxy = errors.New("proxycheck: no proxy configured")

// Spec is a validated proxy endpoint.
type Spec struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Parse accepts "host:port" or "user:pass@host:port".
func Parse(address string) (Spec, error) {
	if address == "" {
		return Spec{}, ErrNoProxy
	}

	var spec Spec
	hostPart := address
	if at := strings.LastIndex(address, "@"); at >= 0 {
		creds := address[:at]
		hostPart = address[at+1:]
		user, pass, ok := strings.Cut(creds, ":")
		if !ok {
			return Spec{}, fmt.Errorf("proxycheck: malformed credentials in %q", address)
		}
		spec.Username = user
		spec.Password = pass
	}

	host, portStr, err := net.SplitHostPort(hostPart)
	if err != nil {
		return Spec{}, fmt.Errorf("proxycheck: malformed proxy address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Spec{}, fmt.Errorf("proxycheck: invalid proxy port %q", portStr)
	}

	spec.Host = host
	spec.Port = port
	return spec, spec.check()
}

// FromEnv reads the PROXY_HOST / PROXY_PORT / PROXY_USERNAME / PROXY_PASSWORD
// variables. Reports ErrNoProxy when PROXY_HOST is unset.
func FromEnv() (Spec, error) {
	host := os.Getenv("PROXY_HOST")
	if host == "" {
		return Spec{}, ErrNoProxy
	}
	port, err := strconv.Atoi(os.Getenv("PROXY_PORT"))
	if err != nil || port < 1 || port > 65535 {
		return Spec{}, fmt.Errorf("proxycheck: PROXY_PORT is missing or invalid")
	}
	spec := Spec{
		Host:     host,
		Port:     port,
		Username: os.Getenv("PROXY_USERNAME"),
		Password: os.Getenv("PROXY_PASSWORD"),
	}
	return spec, spec.check()
}

// Resolve returns the configured spec when address is set, otherwise falls
// back to the environment.
func Resolve(address string) (Spec, error) {
	if address != "" {
		return Parse(address)
	}
	return FromEnv()
}

// check enforces the credential shape: both halves or neither.
func (s Spec) check() error {
	if s.Host == "" {
		return fmt.Errorf("proxycheck: proxy host is empty")
	}
	if (s.Username == "") != (s.Password == "") {
		return fmt.Errorf("proxycheck: username and password must be supplied together")
	}
	return nil
}

// Endpoint is the dialable "host:port" form.
func (s Spec) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServerURL is the form the browser's proxy flag expects.
func (s Spec) ServerURL() string {
	return "http://" + s.Endpoint()
}

// Authenticated reports whether credentials are present.
func (s Spec) Authenticated() bool {
	return s.Username != ""
}
