// Command regiond is the region simulator daemon: it owns one World, one
// script Host, one physics Bridge, and the HTTP listener serving both the
// per-session capability surface and the grid federation surface.
// Grounded on AIStore's target daemon entrypoint shape (cmd/target's
// main.go wires cmn.GCO, the storage targets, and the HTTP listener in
// the same load-config/build-components/serve/drain sequence this file
// follows, generalized from a storage node to a simulator region).
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"

	"github.com/rezsim/rez/caps"
	"github.com/rezsim/rez/cmn"
	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/fed"
	"github.com/rezsim/rez/grid/meta"
	"github.com/rezsim/rez/gridbackend/azblobbackend"
	"github.com/rezsim/rez/gridbackend/gcsbackend"
	"github.com/rezsim/rez/gridbackend/hdfsbackend"
	"github.com/rezsim/rez/gridbackend/s3backend"
	"github.com/rezsim/rez/httpd"
	"github.com/rezsim/rez/inventory"
	"github.com/rezsim/rez/metrics"
	"github.com/rezsim/rez/persist"
	"github.com/rezsim/rez/physics"
	"github.com/rezsim/rez/script"
	"github.com/rezsim/rez/session"
	"github.com/rezsim/rez/world"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to the region's .ini config file (optional)")
		simDir       = flag.String("simdir", "./simstate", "directory holding this region's persisted simstate")
		shortName    = flag.String("name", "default", "short name identifying this region's simstate file")
		listenAddr   = flag.String("listen", ":9000", "address the capability and federation HTTP surface listens on")
		metricsAddr  = flag.String("metrics-listen", ":9090", "address the Prometheus /metrics endpoint listens on")
		regionX      = flag.Uint("x", 1000, "region grid coordinate X")
		regionY      = flag.Uint("y", 1000, "region grid coordinate Y")
		physicsHz    = flag.Duration("physics-tick", 45*time.Millisecond, "physics worker tick interval")
		snapshotEach = flag.Duration("snapshot-interval", 5*time.Minute, "how often to write simstate to disk while running")

		assetBackend = flag.String("asset-backend", "s3", "asset store backend: s3, azblob, gcs, or hdfs")
		s3Bucket     = flag.String("s3-bucket", "", "s3-backend: bucket name")
		s3Prefix     = flag.String("s3-prefix", "", "s3-backend: key prefix")
		s3Region     = flag.String("s3-region", "", "s3-backend: AWS region")
		s3Endpoint   = flag.String("s3-endpoint", "", "s3-backend: optional S3-compatible endpoint override")

		azServiceURL = flag.String("az-service-url", "", "azblob-backend: https://<account>.blob.core.windows.net")
		azContainer  = flag.String("az-container", "", "azblob-backend: container name")
		azPrefix     = flag.String("az-prefix", "", "azblob-backend: blob name prefix")
		azAccount    = flag.String("az-account", "", "azblob-backend: storage account name")
		azKey        = flag.String("az-key", "", "azblob-backend: shared key")

		gcsBucket = flag.String("gcs-bucket", "", "gcs-backend: bucket name")
		gcsPrefix = flag.String("gcs-prefix", "", "gcs-backend: object name prefix")

		hdfsNamenode = flag.String("hdfs-namenode", "", "hdfs-backend: namenode address")
		hdfsDir      = flag.String("hdfs-dir", "/rez/assets", "hdfs-backend: base directory for asset objects")
	)
	flag.Parse()

	if *configPath != "" {
		cfg, err := cmn.LoadFile(*configPath)
		if err != nil {
			nlog.Fatalln("regiond: loading config:", err)
		}
		cmn.GCO.Put(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := buildAssetBackend(ctx, *assetBackend, backendFlags{
		s3Bucket: *s3Bucket, s3Prefix: *s3Prefix, s3Region: *s3Region, s3Endpoint: *s3Endpoint,
		azServiceURL: *azServiceURL, azContainer: *azContainer, azPrefix: *azPrefix, azAccount: *azAccount, azKey: *azKey,
		gcsBucket: *gcsBucket, gcsPrefix: *gcsPrefix,
		hdfsNamenode: *hdfsNamenode, hdfsDir: *hdfsDir,
	})
	if err != nil {
		nlog.Fatalln("regiond: building asset backend:", err)
	}

	assetCacheDir := fmt.Sprintf("%s/assetmeta-%s.db", *simDir, *shortName)
	if err := os.MkdirAll(*simDir, 0o755); err != nil {
		nlog.Fatalln("regiond: creating simdir:", err)
	}
	assets, err := inventory.NewAssetCache(assetCacheDir, backend)
	if err != nil {
		nlog.Fatalln("regiond: opening asset cache:", err)
	}
	defer assets.Close()

	w := world.New()
	host := newRegion(w, uint32(*regionX), uint32(*regionY))

	scripts := script.NewHost(script.DefaultCompile, script.DefaultRestore)
	go scripts.Run()
	defer scripts.Shutdown()

	engine := physics.NewKinematicEngine(0)
	bridge := physics.NewBridge(engine, host.onPhysicsMove)
	go bridge.Run(*physicsHz)
	defer bridge.Shutdown()
	host.scripts = scripts
	host.bridge = bridge
	host.assets = assets

	if err := host.loadSimState(*simDir, *shortName); err != nil {
		nlog.Warningf("regiond: no prior simstate loaded for %s: %v", *shortName, err)
	}

	reg := metrics.NewRegistry(metrics.Counters{
		SessionCount:  func() float64 { return float64(host.sessionCount()) },
		ScriptCount:   func() float64 { return float64(scripts.ScriptCount()) },
		GroundedCount: func() float64 { return float64(bridge.GroundedCount()) },
	})
	reg.StartIostatSampling(10 * time.Second)
	defer reg.Stop()

	mux := caps.NewMux()
	host.mux = mux

	surface := &fed.Surface{
		OnExpectUser:       host.onExpectUser,
		OnLogoffUser:       host.onLogoffUser,
		OnInstantMessage:   host.onInstantMessage,
		OnLoginToSimulator: host.onLoginToSimulator,
		OnCreateChildAgent: host.onCreateChildAgent,
		OnUpgradeAgent:     host.onUpgradeAgent,
		OnReleaseAgent:     host.onReleaseAgent,
	}

	srv := httpd.NewServer(httpd.Config{
		Addr:         *listenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, mux, surface)

	metricsSrv := &metricsServer{addr: *metricsAddr, handler: reg.Handler()}
	go metricsSrv.run()

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			nlog.Errorln("regiond: httpd listener stopped:", err)
		}
	}()

	go host.snapshotLoop(*simDir, *shortName, *snapshotEach)

	nlog.Infof("regiond: region %s serving at %s (handle %s)", *shortName, *listenAddr, host.handle)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	nlog.Infoln("regiond: shutting down")
	cancel()
	if err := srv.Shutdown(); err != nil {
		nlog.Errorln("regiond: httpd shutdown:", err)
	}
	if err := host.saveSimState(*simDir, *shortName); err != nil {
		nlog.Errorln("regiond: final simstate save:", err)
	}
}

// region bundles the live components a running simulator owns, plus the
// per-session bookkeeping the capability mux and federation surface
// dispatch against.
type region struct {
	handle meta.Handle
	world  *world.World

	scripts *script.Host
	bridge  *physics.Bridge
	assets  *inventory.AssetCache
	mux     *caps.Mux

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	items    map[uuid.UUID]*inventory.Item // loaded-from-disk inventory index, for the next save's Resolver
}

func newRegion(w *world.World, x, y uint32) *region {
	return &region{
		handle:   meta.NewHandle(x, y),
		world:    w,
		sessions: make(map[uuid.UUID]*session.Session),
		items:    make(map[uuid.UUID]*inventory.Item),
	}
}

func (rg *region) sessionCount() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return len(rg.sessions)
}

// onPhysicsMove is the physics worker's per-tick readback callback: it
// folds the new pose into the world record and marks the object dirty so
// every subscribed session's composite-update queue picks it up.
func (rg *region) onPhysicsMove(id uuid.UUID, pos world.Vector3, _ world.Quat) {
	if p, _, ok := rg.world.LookupByID(id); ok && p != nil {
		if err := rg.world.MoveRoot(id, pos); err != nil {
			nlog.Warningf("regiond: physics move for %s: %v", id, err)
		}
	}
}

// onExpectUser handles the grid's expect_user call: this region is
// about to receive either a child or full agent for agentID. A real
// deployment resolves start position, circuit code, and appearance from
// the grid's user/presence services via fed.Glue; here the region simply
// opens a session slot and lets the CompleteMovement/teleport flow fill
// it in, matching what AIStore's prxs3.go does for multi-step object
// uploads: reserve state on the first call, complete it on a later one.
func (rg *region) onExpectUser(_ context.Context, req fed.ChildAgentRequest) error {
	sess := session.NewSession(req.AgentID, req.SessionID, req.CircuitCode, world.Vector3{})
	rt := caps.NewRouter()

	rg.mu.Lock()
	rg.sessions[req.AgentID] = sess
	rg.mu.Unlock()

	rg.mux.Attach(req.AgentID, rt)
	nlog.Infof("regiond: expecting agent %s (session %s)", req.AgentID, req.SessionID)
	return nil
}

// onLogoffUser tears a session down: detaches its capability router and
// drops it from the session table.
func (rg *region) onLogoffUser(_ context.Context, agentID uuid.UUID) error {
	rg.mu.Lock()
	_, ok := rg.sessions[agentID]
	delete(rg.sessions, agentID)
	rg.mu.Unlock()

	if !ok {
		return nil
	}
	rg.mux.Detach(agentID)
	nlog.Infof("regiond: logged off agent %s", agentID)
	return nil
}

// onInstantMessage delivers a grid-relayed IM to toID's event queue, if
// toID currently has a session on this region.
func (rg *region) onInstantMessage(_ context.Context, fromID, toID uuid.UUID, message string) error {
	rg.mu.Lock()
	sess, ok := rg.sessions[toID]
	rg.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent %s has no session on this region", toID)
	}
	sess.Queue.Push(instantMessage{FromID: fromID, Message: message})
	return nil
}

type instantMessage struct {
	FromID  uuid.UUID
	Message string
}

// onLoginToSimulator answers the grid's login_to_simulator XML-RPC call:
// the first param is the agent id, the second the circuit code, the
// third the starting position. It opens the same expected-session slot
// onExpectUser does and hands back the seed capability URL the viewer's
// first request must present.
func (rg *region) onLoginToSimulator(ctx context.Context, params fed.MethodCall) (string, error) {
	agentID, err := uuid.Parse(params.Params[0].Value.String)
	if err != nil {
		return "", fmt.Errorf("bad agent_id in login_to_simulator: %w", err)
	}
	sessionID := uuid.New()
	if err := rg.onExpectUser(ctx, fed.ChildAgentRequest{AgentID: agentID, SessionID: sessionID}); err != nil {
		return "", err
	}

	rt, ok := rg.mux.RouterFor(agentID)
	if !ok {
		return "", fmt.Errorf("no router attached for agent %s", agentID)
	}
	seedURL, err := rt.Register("SeedCapability", true, rg.seedCapabilityHandler(agentID))
	if err != nil {
		return "", err
	}
	return seedURL, nil
}

// onCreateChildAgent decodes a grid-relayed child-agent handshake body
// and opens a child session slot for it, mirroring onExpectUser but for
// the HTTP (rather than XML-RPC) leg of the same handshake.
func (rg *region) onCreateChildAgent(ctx context.Context, agentID uuid.UUID, body []byte) (string, error) {
	var req fed.ChildAgentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("decoding child agent request: %w", err)
	}
	req.AgentID = agentID
	if err := rg.onExpectUser(ctx, req); err != nil {
		return "", err
	}
	rt, ok := rg.mux.RouterFor(agentID)
	if !ok {
		return "", fmt.Errorf("no router attached for agent %s", agentID)
	}
	return rt.Register("SeedCapability", true, rg.seedCapabilityHandler(agentID))
}

// onUpgradeAgent promotes a child agent to full once the viewer actually
// teleports in, applying the wearables/throttles/texture-entry the
// destination region was handed ahead of time.
func (rg *region) onUpgradeAgent(_ context.Context, agentID uuid.UUID, _ meta.Handle, body []byte) error {
	var req fed.UpgradeAgentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("decoding upgrade agent request: %w", err)
	}
	rg.mu.Lock()
	sess, ok := rg.sessions[agentID]
	rg.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent %s has no child session to upgrade", agentID)
	}
	sess.State = session.StateFull
	nlog.Infof("regiond: upgraded agent %s to a full agent", agentID)
	return nil
}

// onReleaseAgent tears down the origin-side child agent left behind
// after a completed teleport.
func (rg *region) onReleaseAgent(ctx context.Context, agentID uuid.UUID, _ meta.Handle) error {
	return rg.onLogoffUser(ctx, agentID)
}

// seedCapabilityHandler answers the one request a fresh seed capability
// exists to serve: whatever names the request body lists, it mints the
// session's EventQueueGet capability and a one-shot UploadBakedTexture
// capability and returns both URLs as a JSON object.
func (rg *region) seedCapabilityHandler(agentID uuid.UUID) caps.Handler {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		rt, ok := rg.mux.RouterFor(agentID)
		if !ok {
			http.NotFound(w, r)
			return
		}
		eqURL, err := rt.Register("EventQueueGet", false, rg.eventQueueHandler(agentID))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		uploadURL, err := rt.Register("UploadBakedTexture", true, rg.uploadAssetHandler())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"EventQueueGet":%q,"UploadBakedTexture":%q}`, eqURL, uploadURL)
	}
}

// uploadAssetHandler accepts a raw asset payload and forwards it to the
// region's asset backend, answering with the finalized asset id.
func (rg *region) uploadAssetHandler() caps.Handler {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type result struct {
			id  uuid.UUID
			err error
		}
		done := make(chan result, 1)
		rg.assets.PutAsset(body, func(finalID uuid.UUID, err error) {
			done <- result{finalID, err}
		})
		res := <-done
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"new_asset":%q}`, res.id.String())
	}
}

func (rg *region) eventQueueHandler(agentID uuid.UUID) caps.Handler {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		rg.mu.Lock()
		sess, ok := rg.sessions[agentID]
		rg.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, messages, timedOut := sess.Queue.Poll(r.Context(), 0)
		if timedOut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		fmt.Fprintf(w, "%v", messages)
	}
}

// loadSimState scans dir for a prior snapshot and reinserts every root
// prim (and recursively, its linkset children) into the world, rebuilding
// the in-memory inventory index loadSimState's caller needs to hand back
// to persist.Resolver on the next save.
func (rg *region) loadSimState(dir, shortName string) error {
	names, err := persist.ScanSimStateDir(dir)
	if err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == shortName {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no simstate named %q under %s", shortName, dir)
	}

	records, err := persist.LoadSimState(dir, shortName)
	if err != nil {
		records, err = persist.RepairSimState(dir, shortName)
		if err != nil {
			return fmt.Errorf("load and repair both failed: %w", err)
		}
		nlog.Warningf("regiond: primary simstate for %s was damaged, recovered from backup shards", shortName)
	}

	for _, rec := range records {
		rg.restoreTree(rec)
	}
	nlog.Infof("regiond: restored %d root prims from simstate %q", len(records), shortName)
	return nil
}

func (rg *region) restoreTree(rec *persist.PrimRecord) {
	rg.world.InsertPrim(rec.Prim)
	rg.restoreInventory(rec.Inventory)
	rg.restorePhysics(rec.Prim)
	for _, child := range rec.Children {
		rg.world.InsertPrim(child.Prim)
		if err := rg.world.LinkPrim(rec.Prim, child.Prim); err != nil {
			nlog.Warningf("regiond: relinking %s under %s: %v", child.Prim.ID, rec.Prim.ID, err)
		}
		rg.restoreInventory(child.Inventory)
		for _, grandchild := range child.Children {
			rg.restoreTree(grandchild)
		}
	}
}

// restorePhysics hands a root whose persisted Physical flag is set back
// to the bridge, defaulting to a box hull sized by the prim's scale;
// deriving the exact swept-hull shape from profile/path curve bytes is
// the renderer's job, not something the physics worker needs for a
// freshly loaded region to start settling bodies correctly.
func (rg *region) restorePhysics(p *world.Prim) {
	if !p.Physical {
		return
	}
	rg.bridge.AddObject(&physics.Object{
		ID:           p.ID,
		LocalID:      p.LocalID,
		Category:     physics.CategoryDynamicPrim,
		CurrentShape: physics.BuildShape(physics.ShapeBox, p.Scale, p.Shape),
		Pos:          p.WorldPos,
		Rot:          p.Rot,
		Mass:         1,
	})
}

// restoreInventory indexes each loaded item for the next save's
// Resolver, and for script items, hands the embedded bytecode blob back
// to the script host so its VM resumes where it left off.
func (rg *region) restoreInventory(items []*inventory.Item) {
	for _, item := range items {
		rg.mu.Lock()
		rg.items[item.ItemID] = item
		rg.mu.Unlock()
		if item.IsScript && len(item.EmbeddedAsset) > 0 {
			rg.scripts.RestoreScript(item.ItemID, item.EmbeddedAsset)
		}
	}
}

// saveSimState walks every root prim currently in the world and writes a
// fresh snapshot, using rg.items (seeded at load time and grown by
// whatever inventory operations ran since) to resolve each prim's
// InventoryItemRef list back to full items.
func (rg *region) saveSimState(dir, shortName string) error {
	rg.mu.Lock()
	items := make(map[uuid.UUID]*inventory.Item, len(rg.items))
	for k, v := range rg.items {
		items[k] = v
	}
	rg.mu.Unlock()

	var roots []*world.Prim
	for _, p := range rg.world.Prims {
		if p.IsRoot() {
			roots = append(roots, p)
		}
	}

	res := persist.Resolver{
		Item: func(itemID uuid.UUID) (*inventory.Item, bool) {
			it, ok := items[itemID]
			return it, ok
		},
		Children: func(p *world.Prim) []*world.Prim {
			children := make([]*world.Prim, 0, len(p.ChildIDs))
			for _, id := range p.ChildIDs {
				if c, ok := rg.world.Prims[id]; ok {
					children = append(children, c)
				}
			}
			return children
		},
	}
	return persist.SaveSimState(dir, shortName, roots, res)
}

func (rg *region) snapshotLoop(dir, shortName string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := rg.saveSimState(dir, shortName); err != nil {
			nlog.Errorln("regiond: periodic simstate save:", err)
			continue
		}
		nlog.Infof("regiond: snapshotted simstate %q", shortName)
	}
}

// metricsServer runs the Prometheus scrape endpoint on its own listener,
// separate from the capability/federation surface so a monitoring
// scraper never competes with viewer traffic.
type metricsServer struct {
	addr    string
	handler http.Handler
}

func (m *metricsServer) run() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler)
	nlog.Infof("regiond: metrics listening on %s", m.addr)
	if err := http.ListenAndServe(m.addr, mux); err != nil {
		nlog.Errorln("regiond: metrics listener stopped:", err)
	}
}

type backendFlags struct {
	s3Bucket, s3Prefix, s3Region, s3Endpoint string
	azServiceURL, azContainer, azPrefix      string
	azAccount, azKey                         string
	gcsBucket, gcsPrefix                     string
	hdfsNamenode, hdfsDir                    string
}

// buildAssetBackend selects and constructs one of the four pluggable
// inventory.AssetBackend implementations a grid operator can point this
// region at, based on the -asset-backend flag.
func buildAssetBackend(ctx context.Context, kind string, f backendFlags) (inventory.AssetBackend, error) {
	switch kind {
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Bucket:   f.s3Bucket,
			Prefix:   f.s3Prefix,
			Region:   f.s3Region,
			Endpoint: f.s3Endpoint,
		})
	case "azblob":
		cred, err := azblob.NewSharedKeyCredential(f.azAccount, f.azKey)
		if err != nil {
			return nil, fmt.Errorf("building azure shared key credential: %w", err)
		}
		return azblobbackend.New(ctx, azblobbackend.Config{
			ServiceURL: f.azServiceURL,
			Container:  f.azContainer,
			Prefix:     f.azPrefix,
		}, *cred)
	case "gcs":
		return gcsbackend.New(ctx, gcsbackend.Config{
			Bucket: f.gcsBucket,
			Prefix: f.gcsPrefix,
		})
	case "hdfs":
		return hdfsbackend.New(f.hdfsNamenode, f.hdfsDir)
	default:
		return nil, fmt.Errorf("unknown asset backend %q (want s3, azblob, gcs, or hdfs)", kind)
	}
}
