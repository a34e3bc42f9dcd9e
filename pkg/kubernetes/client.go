package kubernetes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/getgrowly/vault-lifecycle/pkg/logging"
)

const logSubsystem = "Kubernetes"

// Client represents a Kubernetes client for discovering and controlling Vault pods
type Client struct {
	clientset kubernetes.Interface
}

// Pod is a running Vault server pod.
type Pod struct {
	Name string
	IP   string
}

// NewClient creates a new Kubernetes client using in-cluster configuration or local kubeconfig
func NewClient() (*Client, error) {
	// Try in-cluster config first
	config, err := rest.InClusterConfig()
	if err != nil {
		// Fall back to kubeconfig
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			if home := os.Getenv("HOME"); home != "" {
				kubeconfig = filepath.Join(home, ".kube", "config")
			}
		}

		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

// NewClientWithInterface creates a new Kubernetes client with a provided interface
func NewClientWithInterface(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// VaultPods returns the Vault pods matching selector that have an IP assigned
func (c *Client) VaultPods(ctx context.Context, namespace, selector string) ([]Pod, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Vault pods: %w", err)
	}

	var result []Pod
	for _, pod := range pods.Items {
		if pod.Status.PodIP != "" {
			logging.Debug(logSubsystem, "Found Vault pod %s with IP %s", pod.Name, pod.Status.PodIP)
			result = append(result, Pod{Name: pod.Name, IP: pod.Status.PodIP})
		}
	}

	return result, nil
}

// ScaleStatefulSet sets the replica count of the named StatefulSet
func (c *Client) ScaleStatefulSet(ctx context.Context, namespace, name string, replicas int32) error {
	sts, err := c.clientset.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get statefulset %s: %w", name, err)
	}

	if sts.Spec.Replicas != nil && *sts.Spec.Replicas == replicas {
		logging.Debug(logSubsystem, "StatefulSet %s already has %d replicas", name, replicas)
		return nil
	}

	sts.Spec.Replicas = &replicas
	if _, err := c.clientset.AppsV1().StatefulSets(namespace).Update(ctx, sts, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to scale statefulset %s: %w", name, err)
	}

	logging.Info(logSubsystem, "Scaled StatefulSet %s/%s to %d replicas", namespace, name, replicas)
	return nil
}
