package consul

import (
	"fmt"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Client Consul客户端包装
// 未启用或连不上时降级为空操作，服务照常启动。
type Client struct {
	apiClient *api.Client
	enabled   bool
	logger    *zap.Logger
}

// NewClient 创建Consul客户端
func NewClient(address string, enabled bool, logger *zap.Logger) (*Client, error) {
	if !enabled {
		return &Client{enabled: false, logger: logger}, nil
	}

	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	apiClient, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, _, err := apiClient.Health().State(api.HealthAny, nil); err != nil {
		logger.Warn("consul connection test failed, registration disabled", zap.Error(err))
		return &Client{enabled: false, logger: logger}, nil
	}

	logger.Info("consul client initialized", zap.String("address", address))
	return &Client{apiClient: apiClient, enabled: true, logger: logger}, nil
}

// IsEnabled 是否启用
func (c *Client) IsEnabled() bool {
	return c.enabled && c.apiClient != nil
}

// RegisterService 注册服务
func (c *Client) RegisterService(registration *api.AgentServiceRegistration) error {
	if !c.IsEnabled() {
		return fmt.Errorf("consul is not enabled")
	}
	if err := c.apiClient.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// DeregisterService 注销服务
func (c *Client) DeregisterService(serviceID string) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.apiClient.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

// GetServiceAddress 返回一个健康实例的地址
func (c *Client) GetServiceAddress(serviceName string) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("consul is not enabled")
	}

	entries, _, err := c.apiClient.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("failed to query service %s: %w", serviceName, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instances found for service %s", serviceName)
	}

	entry := entries[0]
	address := entry.Service.Address
	if address == "" {
		address = entry.Node.Address
	}
	return fmt.Sprintf("%s:%d", address, entry.Service.Port), nil
}
