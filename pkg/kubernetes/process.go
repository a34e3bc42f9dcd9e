package kubernetes

import (
	"context"
)

// StatefulSetProcess starts and stops Vault by scaling its StatefulSet.
type StatefulSetProcess struct {
	Client    *Client
	Namespace string
	Name      string
	// Replicas is the size restored by Start. Values below one mean one.
	Replicas int32
}

// Start scales the StatefulSet up to Replicas.
func (p *StatefulSetProcess) Start(ctx context.Context) error {
	replicas := p.Replicas
	if replicas < 1 {
		replicas = 1
	}
	return p.Client.ScaleStatefulSet(ctx, p.Namespace, p.Name, replicas)
}

// Stop scales the StatefulSet down to zero.
func (p *StatefulSetProcess) Stop(ctx context.Context) error {
	return p.Client.ScaleStatefulSet(ctx, p.Namespace, p.Name, 0)
}
