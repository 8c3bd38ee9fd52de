// Scene restore at start-up (spec.md §4.11, grounded on
// vs_mongo_context_load/vs_mongo_node_load_linked). Unlike the C
// server — whose vs_mongo_node_load was never finished (a stub
// returning NULL unconditionally) and whose layer loader only
// restored VRS_VALUE_TYPE_UINT8 items — this package implements the
// full round trip symmetrically with SaveNode/SaveTagGroup/SaveLayer,
// for every declared data type (spec.md §9 open question, resolved in
// DESIGN.md).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package persist

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verse-project/verse/layer"
	"github.com/verse-project/verse/link"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

// latestVersion unwraps the "versions" array convention SaveNode/
// SaveTagGroup/SaveLayer append to and returns the most recent entry.
func latestVersion[T any](raw bson.M, key string) (T, bool) {
	var zero T
	arr, ok := raw[key].(bson.A)
	if !ok || len(arr) == 0 {
		return zero, false
	}
	last := arr[len(arr)-1]
	encoded, err := bson.Marshal(last)
	if err != nil {
		return zero, false
	}
	var out T
	if err := bson.Unmarshal(encoded, &out); err != nil {
		return zero, false
	}
	return out, true
}

// LoadSceneSubtree restores the node named by rootID plus every
// descendant recorded in child_nodes, recursively, attaching each to
// store and linking it under its restored parent. It mirrors
// vs_mongo_context_load: the caller destroys whatever placeholder
// subtree already exists at rootID before calling this, and falls back
// to its own bootstrap helper if this returns a nil root (grounds "When
// loading of node failed, then recreate new default parent node").
func (s *Store) LoadSceneSubtree(ctx context.Context, store *node.Store, rootID vtypes.NodeID, owner vtypes.UserID) (*node.Node, error) {
	restored, err := s.loadNodeLinked(ctx, store, rootID, owner, nil)
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Store) loadNodeLinked(ctx context.Context, store *node.Store, id vtypes.NodeID, owner vtypes.UserID, parent *node.Node) (*node.Node, error) {
	var raw bson.M
	err := s.nodes.FindOne(ctx, bson.M{"node_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "persist: loading node %d", id)
	}

	ver, ok := latestVersion[nodeDoc](raw, "versions")
	if !ok {
		glog.Warningf("persist: node %d document has no versions, skipping", id)
		return nil, nil
	}
	customType, _ := raw["custom_type"]

	n, cerr := store.CreateLinked(id, true, ver.OwnerID, toUint16(customType))
	if cerr != nil {
		return nil, errors.Wrapf(cerr, "persist: recreating node %d", id)
	}
	n.SetFlags(node.SaveableFlag)
	n.SetSavedVersion(ver.Version)
	n.SetCRC32(ver.CRC32)
	for _, p := range ver.Permissions {
		n.SetPerm(p.UserID, p.Mask)
	}
	if parent != nil {
		link.Create(parent, n)
	}

	if err := s.loadTagGroupsFor(ctx, n); err != nil {
		return nil, err
	}
	if err := s.loadLayersFor(ctx, n); err != nil {
		return nil, err
	}

	for _, childID := range ver.ChildNodes {
		if _, err := s.loadNodeLinked(ctx, store, childID, owner, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func toUint16(v any) uint16 {
	switch x := v.(type) {
	case int32:
		return uint16(x)
	case int64:
		return uint16(x)
	default:
		return 0
	}
}

func (s *Store) loadTagGroupsFor(ctx context.Context, n *node.Node) error {
	cur, err := s.tgs.Find(ctx, bson.M{"node_id": n.ID()})
	if err != nil {
		return errors.Wrapf(err, "persist: loading tag groups for node %d", n.ID())
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc tagGroupDoc
		if err := cur.Decode(&doc); err != nil {
			glog.Warningf("persist: skipping corrupt tag group document for node %d: %v", n.ID(), err)
			continue
		}
		tg := tag.NewTagGroup(doc.TagGroupID, doc.CustomType)
		tg.SetSavedVersion(doc.Version)
		tg.SetCRC32(doc.CRC32)
		for _, td := range doc.Tags {
			t := tag.NewTag(td.TagID, td.DataType, td.Count, td.CustomType)
			if td.DataType == vtypes.DataTypeString8 {
				t.SetString(td.StrValue)
			} else if len(td.Value) > 0 {
				var raw [4 * 8]byte
				copy(raw[:], td.Value)
				t.SetValue(raw)
			}
			tg.Tags().Add(t)
		}
		n.TagGroups().Add(tg)
	}
	return cur.Err()
}

// loadLayersFor restores every layer document for n, linking a
// layer to its already-restored parent layer regardless of the order
// documents arrive in (layers may declare a parent_layer_id for a
// sibling that hasn't been constructed yet).
func (s *Store) loadLayersFor(ctx context.Context, n *node.Node) error {
	cur, err := s.layers.Find(ctx, bson.M{"node_id": n.ID()})
	if err != nil {
		return errors.Wrapf(err, "persist: loading layers for node %d", n.ID())
	}
	defer cur.Close(ctx)

	var docs []layerDoc
	for cur.Next(ctx) {
		var doc layerDoc
		if err := cur.Decode(&doc); err != nil {
			glog.Warningf("persist: skipping corrupt layer document for node %d: %v", n.ID(), err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return err
	}

	built := make(map[uint16]*layer.Layer, len(docs))
	// Layers nest at most as deep as the tree of parent_layer_id
	// references; iterating until a full pass makes no progress
	// handles any arrival order without assuming documents are sorted.
	remaining := docs
	for len(remaining) > 0 {
		var next []layerDoc
		progressed := false
		for _, doc := range remaining {
			var parent *layer.Layer
			if doc.ParentLayerID != uint16(vtypes.ReservedID) {
				p, ok := built[doc.ParentLayerID]
				if !ok {
					next = append(next, doc)
					continue
				}
				parent = p
			}
			l := layer.New(doc.LayerID, doc.DataType, doc.Count, doc.CustomType, parent)
			l.SetSavedVersion(doc.Version)
			l.SetCRC32(doc.CRC32)
			for _, it := range doc.Items {
				var raw [4 * 8]byte
				copy(raw[:], it.Value)
				l.SetValue(it.ItemID, raw)
			}
			built[doc.LayerID] = l
			n.Layers().Add(l)
			progressed = true
		}
		if !progressed {
			glog.Warningf("persist: node %d has %d layer documents with unresolvable parent_layer_id, dropping them", n.ID(), len(next))
			break
		}
		remaining = next
	}
	return nil
}
