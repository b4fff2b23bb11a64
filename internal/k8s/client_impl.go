package k8s

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// kubernetesClient implements the Client interface using client-go.
type kubernetesClient struct {
	config    *ClientConfig
	clientset kubernetes.Interface
	logger    *slog.Logger
}

// ClientConfig holds configuration for the Kubernetes client.
type ClientConfig struct {
	// Kubeconfig settings
	KubeconfigPath string
	Context        string

	// InCluster selects service account authentication instead of a
	// kubeconfig.
	InCluster bool

	// Performance settings
	QPSLimit   float32
	BurstLimit int
	Timeout    time.Duration

	// Logging
	Logger *slog.Logger
}

// NewClient creates a new Kubernetes client with the given configuration.
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("client configuration is required")
	}

	// Set defaults
	if config.QPSLimit == 0 {
		config.QPSLimit = DefaultQPSLimit
	}
	if config.BurstLimit == 0 {
		config.BurstLimit = DefaultBurstLimit
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	restConfig, err := buildRestConfig(config)
	if err != nil {
		return nil, err
	}
	restConfig.QPS = config.QPSLimit
	restConfig.Burst = config.BurstLimit
	restConfig.Timeout = config.Timeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	if config.InCluster {
		config.Logger.Info("using in-cluster authentication")
	} else {
		config.Logger.Info("using kubeconfig authentication",
			"kubeconfig", config.KubeconfigPath, "context", config.Context)
	}

	return &kubernetesClient{
		config:    config,
		clientset: clientset,
		logger:    config.Logger,
	}, nil
}

// NewFromClientset wraps an existing clientset in the Client interface. Used
// for wiring in tests and anywhere a clientset is already available.
func NewFromClientset(clientset kubernetes.Interface) Client {
	return &kubernetesClient{
		config:    &ClientConfig{},
		clientset: clientset,
		logger:    slog.Default(),
	}
}

func buildRestConfig(config *ClientConfig) (*rest.Config, error) {
	if config.InCluster {
		if err := validateInClusterEnvironment(); err != nil {
			return nil, fmt.Errorf("in-cluster authentication not available: %w", err)
		}
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster rest config: %w", err)
		}
		return restConfig, nil
	}

	kubeconfigPath := config.KubeconfigPath
	if kubeconfigPath == "" {
		kconf := os.Getenv("KUBECONFIG")
		if strings.HasPrefix(kconf, "~/") {
			uhd, _ := os.UserHomeDir()
			kconf = filepath.Join(uhd, kconf[2:])
		}
		kubeconfigPath = kconf
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		&clientcmd.ConfigOverrides{CurrentContext: config.Context},
	)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create rest config from kubeconfig: %w", err)
	}
	return restConfig, nil
}

// validateInClusterEnvironment checks if the required in-cluster
// authentication files are present.
func validateInClusterEnvironment() error {
	if _, err := os.Stat(DefaultTokenPath); os.IsNotExist(err) {
		return fmt.Errorf("service account token not found at %s", DefaultTokenPath)
	}
	if _, err := os.Stat(DefaultCACertPath); os.IsNotExist(err) {
		return fmt.Errorf("service account CA certificate not found at %s", DefaultCACertPath)
	}
	if _, err := os.Stat(DefaultNamespacePath); os.IsNotExist(err) {
		return fmt.Errorf("service account namespace not found at %s", DefaultNamespacePath)
	}
	return nil
}
