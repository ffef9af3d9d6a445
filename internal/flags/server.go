package flags

import (
	"fmt"
	"net/url"
)

type Server string

func (f *Server) String() string {
	return string(*f)
}

func (f *Server) Set(str string) error {
	if str == "" {
		*f = Server("")
		return nil
	}
	u, err := url.Parse(str)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", str, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https, got %q", str)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL %q has no host", str)
	}
	*f = Server(str)
	return nil
}

func (f *Server) Type() string {
	return "server"
}

func (f *Server) Description() string {
	return "The base URL of the cluster API server e.g. 'https://127.0.0.1:6443'. When not set, the server is read from the kubeconfig."
}
