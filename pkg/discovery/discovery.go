// Package discovery registers the storefront in etcd and resolves the
// endpoints of the services it calls.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const leaseTTL = 30

// ServiceDiscovery registers this process in etcd and looks up others.
type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

// ServiceInstance is one registered endpoint of a service.
type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// NewServiceDiscovery connects to etcd. DialTimeout is a number of seconds.
func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger.Named("discovery"),
	}, nil
}

func instanceKey(prefix string, instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", prefix, instance.Name, instance.Addr())
}

// Register publishes the instance under a lease that is kept alive until ctx
// is canceled or the client is closed.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := sd.client.Grant(ctx, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, instanceKey(sd.config.Prefix, instance), instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := sd.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive stopped", zap.String("service", instance.Name))
	}()

	return nil
}

// Discover lists the registered instances of service.
func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		instance, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed service entry", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func parseInstance(name, addr string) (*ServiceInstance, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q", portStr)
	}
	return &ServiceInstance{Name: name, Host: host, Port: port}, nil
}

// Endpoint resolves a base URL for serviceName, falling back to fallback when
// the service has no registered instance. The scheme of fallback is kept.
func (sd *ServiceDiscovery) Endpoint(ctx context.Context, serviceName, fallback string) string {
	if serviceName == "" {
		return fallback
	}
	instances, err := sd.Discover(ctx, serviceName)
	if err != nil || len(instances) == 0 {
		sd.logger.Warn("No instance discovered, using configured URL",
			zap.String("service", serviceName), zap.String("url", fallback), zap.Error(err))
		return fallback
	}
	return endpointURL(fallback, instances[0])
}

func endpointURL(fallback string, instance *ServiceInstance) string {
	scheme := "http"
	if i := strings.Index(fallback, "://"); i > 0 {
		scheme = fallback[:i]
	}
	return scheme + "://" + instance.Addr()
}

// Deregister removes the instance key from etcd.
func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := sd.client.Delete(ctx, instanceKey(sd.config.Prefix, instance))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
