package model

import (
	"sync/atomic"
	"time"
)

var serviceNameCounter uint64

// NextServiceName returns a monotonically increasing default service name
// of the form "service-<n>", used when CreateService omits Name.
func NextServiceName() string {
	n := atomic.AddUint64(&serviceNameCounter, 1)
	return "service-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// CreateService is the request body for POST /services.
type CreateService struct {
	Name       string             `json:"name,omitempty"`
	ServerName []string           `json:"serverName,omitempty"`
	BindHTTPS  Addresses          `json:"bindHttps,omitempty"`
	BindHTTP   Addresses          `json:"bindHttp,omitempty"`
	Cert       *CreateServiceCert `json:"cert,omitempty"`
	Auth       *Auth              `json:"auth,omitempty"`
	From       string             `json:"from"`
	To         string             `json:"to" validate:"required,uri"`
	Timeouts   Timeouts           `json:"timeouts,omitempty"`
	CPUThreads *uint              `json:"cpuThreads,omitempty"`
	User       *CreateServiceUser `json:"user,omitempty"`
}

// Addresses returns the union of BindHTTPS and BindHTTP, the full set of
// socket addresses this service occupies.
func (c CreateService) Addresses() Addresses {
	return c.BindHTTPS.Add(c.BindHTTP)
}

// CreateServiceUser carries optional per-request forwarding options applied
// on top of the service's own auth/timeouts, rather than a stored
// credential — credentials are registered separately via AddUser.
type CreateServiceUser struct {
	Auth     *Auth    `json:"auth,omitempty"`
	Timeouts Timeouts `json:"timeouts,omitempty"`
}

// Service is the stored, authoritative representation of a running
// service: CreateService plus its creation time and the binding key (the
// address set) of the proxy instance it runs on.
type Service struct {
	CreateService
	CreatedAt   time.Time `json:"createdAt"`
	CreatedWith Addresses `json:"createdWith"`
}

