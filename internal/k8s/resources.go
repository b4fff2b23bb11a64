package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// ResourceManager implementation

// CreateSecret creates the env Secret and returns the server's copy.
func (c *kubernetesClient) CreateSecret(ctx context.Context, namespace string, secret *corev1.Secret) (*corev1.Secret, error) {
	created, err := c.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create secret in %s: %w", namespace, err)
	}

	c.logger.Debug("created secret",
		logging.Namespace(namespace), logging.ResourceName(created.Name))
	return created, nil
}

// DeleteSecret removes a Secret by name.
func (c *kubernetesClient) DeleteSecret(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Secrets(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// PatchSecret applies a JSON merge patch to a Secret.
func (c *kubernetesClient) PatchSecret(ctx context.Context, namespace, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().Secrets(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to patch secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// CreateConfigMap creates the code ConfigMap and returns the server's copy.
func (c *kubernetesClient) CreateConfigMap(ctx context.Context, namespace string, configMap *corev1.ConfigMap) (*corev1.ConfigMap, error) {
	created, err := c.clientset.CoreV1().ConfigMaps(namespace).Create(ctx, configMap, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create configmap in %s: %w", namespace, err)
	}

	c.logger.Debug("created configmap",
		logging.Namespace(namespace), logging.ResourceName(created.Name))
	return created, nil
}

// DeleteConfigMap removes a ConfigMap by name.
func (c *kubernetesClient) DeleteConfigMap(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete configmap %s/%s: %w", namespace, name, err)
	}
	return nil
}

// PatchConfigMap applies a JSON merge patch to a ConfigMap.
func (c *kubernetesClient) PatchConfigMap(ctx context.Context, namespace, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().ConfigMaps(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to patch configmap %s/%s: %w", namespace, name, err)
	}
	return nil
}
