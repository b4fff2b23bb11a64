package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// NamespaceManager implementation

// EnsureNamespace creates the namespace if needed. A 409 from the API server
// means another request or an earlier submission already created it, which is
// exactly the state we want.
func (c *kubernetesClient) EnsureNamespace(ctx context.Context, name string) (NamespaceStatus, error) {
	namespace := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: name},
	}

	_, err := c.clientset.CoreV1().Namespaces().Create(ctx, namespace, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			c.logger.Debug("namespace already exists", logging.Namespace(name))
			return NamespaceExisted, nil
		}
		return "", fmt.Errorf("failed to create namespace %s: %w", name, err)
	}

	c.logger.Info("created namespace", logging.Namespace(name))
	return NamespaceCreated, nil
}
