package consul

import (
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
)

type Service struct {
	id      string
	address string
	port    int
}

func (s *Service) Id() string {
	return s.id
}

func (s *Service) Address() string {
	return s.address
}

func (s *Service) Port() int {
	return s.port
}

func (s *Service) Url() string {
	return fmt.Sprintf("http://%s:%d", s.address, s.port)
}

type Client interface {
	HealthServices(serviceName string) ([]*Service, error)
	RegisterService(serviceName, address string, port int) (string, error)
	DeregisterService(id string) error
}

type client struct {
	cfg    *Config
	client *api.Client
}

func NewClient(cfg *Config) (Client, error) {
	cl, err := api.NewClient(cfg.toApiConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create consul client")
	}
	return &client{client: cl, cfg: cfg}, nil
}

// HealthServices lists the instances of serviceName whose checks pass.
func (c *client) HealthServices(serviceName string) ([]*Service, error) {
	entries, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "health services %s", serviceName)
	}
	services := make([]*Service, 0, len(entries))
	for _, srv := range entries {
		services = append(services, &Service{
			id:      srv.Service.ID,
			address: srv.Service.Address,
			port:    srv.Service.Port,
		})
	}
	return services, nil
}

func (c *client) RegisterService(serviceName, address string, port int) (string, error) {
	serviceId := fmt.Sprintf("%s-%s:%d", serviceName, address, port)
	registrationReq := &api.AgentServiceRegistration{
		ID:      serviceId,
		Name:    serviceName,
		Address: address,
		Port:    port,
		Check:   c.cfg.Health.toApiConfig(address, port),
	}
	if err := c.client.Agent().ServiceRegister(registrationReq); err != nil {
		return "", errors.Wrapf(err, "register service %s", serviceId)
	}
	return serviceId, nil
}

func (c *client) DeregisterService(id string) error {
	if err := c.client.Agent().ServiceDeregister(id); err != nil {
		return errors.Wrapf(err, "deregister service %s", id)
	}
	return nil
}
