// Package tree provides the typed, hierarchical state store that mirrors the
// runtime state of managed instances.
//
// A tree is rooted at a *Root (path "/"). Every *Node is either a container
// (datatype "node") holding an insertion-ordered set of uniquely named
// children, or a leaf holding a single scalar of its declared datatype.
// Nodes are addressed by slash-delimited paths:
//
//	root := tree.NewRoot()
//	fov, err := root.CreateRecursive("/instances/7/camera/fov", tree.DatatypeInt32, 90, true, false, "fov")
//	if err != nil {
//	    return err
//	}
//	root.FindNode("/instances/7/camera/fov") == fov // true
//
// # Events
//
// Nodes publish four kinds of events to observers registered with On:
//
//   - EventPreSet and EventPostSet wrap every accepted Set call.
//   - EventSync fires between them when the node has sync enabled and the
//     value was not applied with PreventSync.
//   - EventAdd fires when a new child is created. It is delivered at the
//     owning container and then at every ancestor up to the root, so a
//     single observer on a subtree sees every node added beneath it.
//
// Observers run synchronously on the goroutine that caused the event, in
// registration order, after the node's internal lock has been released.
// Successive Set calls on one node are applied and broadcast in call order.
// An observer must not call Set on the node that is currently emitting.
//
// # Loop prevention
//
// Values that originate from the remote side of a synchronization channel
// are applied with Set(value, PreventSync); such writes never emit
// EventSync and therefore are never echoed back.
package tree
