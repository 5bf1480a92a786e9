// Command duties-engine boots the validator duties engine described in
// spec.md: it parses keystore descriptors and engine settings from the
// command line, opens the durable slashing-protection store, and drives the
// per-slot duty scheduler off a genesis-anchored clock.
//
// The chain view, duty pools, gossip validator, network broadcaster, and
// block processor are external collaborators (spec.md §1's Non-goals);
// this binary does not implement a beacon node, so it is meant to be linked
// into one that supplies those via duties.Config before driving OnSlot. Without
// them wired in, the engine idles: OnSlot's first gate is "no attached
// validators, nothing to do", so an unconfigured or partially-wired instance
// never dereferences a missing collaborator.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/clock"
	"github.com/prysmaticlabs/duties-engine/config"
	"github.com/prysmaticlabs/duties-engine/duties"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/slashing"
	"github.com/prysmaticlabs/duties-engine/validator"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "duties-engine")

var (
	keystoreDirFlag = &cli.StringFlag{
		Name:  "keystore-dir",
		Usage: "directory of JSON keystore descriptor files, one validator each",
	}
	slashingDBFlag = &cli.StringFlag{
		Name:  "slashing-protection-db",
		Usage: "path to the bbolt-backed slashing-protection database",
		Value: "slashing_protection.db",
	}
	genesisTimeFlag = &cli.Int64Flag{
		Name:  "genesis-time",
		Usage: "genesis time as a unix timestamp",
		Value: time.Now().Unix(),
	}
	graffitiFlag = &cli.StringFlag{
		Name:  "graffiti",
		Usage: "default graffiti string for proposed blocks, overridden per-validator by a keystore's own graffiti",
	}
	syncHorizonFlag = &cli.Uint64Flag{
		Name:  "sync-horizon-slots",
		Usage: "maximum slots the head may lag the wall clock before duties are skipped",
		Value: 8,
	}
	doppelgangerFlag = &cli.BoolFlag{
		Name:  "doppelganger-detection",
		Usage: "withhold duties until the start of the epoch --doppelganger-epochs after the startup epoch",
	}
	doppelgangerEpochsFlag = &cli.Uint64Flag{
		Name:  "doppelganger-epochs",
		Usage: "number of epochs from startup to withhold duties for when doppelganger detection is enabled",
		Value: 1,
	}
	dumpEnabledFlag = &cli.BoolFlag{
		Name:  "dump-enabled",
		Usage: "write every signed duty message to --dump-dir as JSON",
	}
	dumpDirFlag = &cli.StringFlag{
		Name:  "dump-dir",
		Usage: "directory signed duty messages are dumped to when --dump-enabled is set",
		Value: "duty_dumps",
	}
)

func main() {
	app := &cli.App{
		Name:  "duties-engine",
		Usage: "runs the validator duties engine's per-slot scheduler",
		Flags: []cli.Flag{
			keystoreDirFlag,
			slashingDBFlag,
			genesisTimeFlag,
			graffitiFlag,
			syncHorizonFlag,
			doppelgangerFlag,
			doppelgangerEpochsFlag,
			dumpEnabledFlag,
			dumpDirFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("duties-engine exited with an error")
	}
}

// keystoreFile is the on-disk JSON shape of one --keystore-dir entry.
//
// Only remote (web3signer-style) descriptors are loadable from this file
// format: a local descriptor needs a real bls.SecretKey, and this module
// deliberately does not implement BLS key material (spec.md §1's Non-goals;
// see DESIGN.md's dropped-dependency notes on herumi/blst). A node embedding
// this engine and carrying its own keystore-crypto backend should construct
// local validator.KeystoreDescriptor values directly and call
// registry.AddLocal itself rather than going through this loader.
type keystoreFile struct {
	Pubkey                string `json:"pubkey"`
	RemoteURL             string `json:"remote_url"`
	IgnoreSSLVerification bool   `json:"ignore_ssl_verification,omitempty"`
	Graffiti              string `json:"graffiti,omitempty"`
}

func run(cliCtx *cli.Context) error {
	cfg := config.Mainnet()
	cfg.SyncHorizonSlots = primitives.Slot(cliCtx.Uint64(syncHorizonFlag.Name))

	registry := validator.NewRegistry()
	if dir := cliCtx.String(keystoreDirFlag.Name); dir != "" {
		if err := loadKeystores(dir, registry); err != nil {
			return errors.Wrap(err, "failed to load keystores")
		}
	}
	log.WithField("count", registry.Len()).Info("Attached validators")
	if registry.Len() > 0 {
		return errors.New("this standalone binary has no wired chain view, duty pools, gossip validator, or network broadcaster; link duties-engine's packages into a node binary that supplies them via duties.Config before attaching validators")
	}

	protector, err := slashing.OpenBoltProtector(cliCtx.String(slashingDBFlag.Name))
	if err != nil {
		return errors.Wrap(err, "failed to open slashing protection store")
	}
	defer func() {
		if err := protector.Close(); err != nil {
			log.WithError(err).Warn("Failed to close slashing protection store cleanly")
		}
	}()

	if cliCtx.Bool(dumpEnabledFlag.Name) {
		if err := os.MkdirAll(cliCtx.String(dumpDirFlag.Name), 0o755); err != nil {
			return errors.Wrap(err, "failed to create dump directory")
		}
	}

	genesis := time.Unix(cliCtx.Int64(genesisTimeFlag.Name), 0).UTC()
	beaconClock := clock.NewGenesisClock(genesis, cfg)
	defer beaconClock.Done()

	var graffitiBytes [32]byte
	copy(graffitiBytes[:], cliCtx.String(graffitiFlag.Name))

	doppelgangerStart := primitives.Epoch(0)
	if cliCtx.Bool(doppelgangerFlag.Name) {
		doppelgangerStart = beaconClock.CurrentSlot().ToEpoch(cfg.SlotsPerEpoch) + primitives.Epoch(cliCtx.Uint64(doppelgangerEpochsFlag.Name))
	}

	engine := duties.New(duties.Config{
		Registry:               registry,
		Protector:               protector,
		Clock:                   beaconClock,
		EngineConfig:            cfg,
		GraffitiBytes:           graffitiBytes,
		SyncHorizonSlots:        cfg.SyncHorizonSlots,
		DoppelgangerDetection:   cliCtx.Bool(doppelgangerFlag.Name),
		DoppelgangerStartEpoch:  doppelgangerStart,
		DumpEnabled:             cliCtx.Bool(dumpEnabledFlag.Name),
		DumpDir:                 cliCtx.String(dumpDirFlag.Name),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lastSlot := beaconClock.CurrentSlot()
	log.WithField("slot", lastSlot).Info("Duties engine started")
	for {
		select {
		case <-sigCh:
			log.Info("Received shutdown signal")
			return nil
		case currentSlot := <-beaconClock.C():
			engine.OnSlot(ctx, lastSlot, currentSlot)
			lastSlot = currentSlot
		}
	}
}

// loadKeystores reads every *.json file in dir and registers each one that
// names a remote_url as a remote validator. Files without a remote_url are
// logged and skipped; no local validator is registered here.
func loadKeystores(dir string, registry *validator.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	stateValidators := map[keys.ValidatorKey]primitives.ValidatorIndex{} // backfilled later from the chain view.

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		var kf keystoreFile
		if err := json.Unmarshal(raw, &kf); err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
		pubkeyBytes, err := hex.DecodeString(trimHex(kf.Pubkey))
		if err != nil {
			return errors.Wrapf(err, "%s: invalid pubkey", path)
		}
		pubkey, ok := keys.FromBytes(pubkeyBytes)
		if !ok {
			return errors.Errorf("%s: pubkey must be 48 bytes", path)
		}

		if kf.RemoteURL == "" {
			log.WithField("file", path).Warn("Keystore file has no remote_url; local signing keystores must be registered by the embedding binary, skipping")
			continue
		}
		desc := validator.KeystoreDescriptor{
			Kind:                  validator.Remote,
			Pubkey:                pubkey,
			RemoteURL:             kf.RemoteURL,
			IgnoreSSLVerification: kf.IgnoreSSLVerification,
			Graffiti:              kf.Graffiti,
		}
		if _, err := registry.AddRemote(desc, stateValidators); err != nil {
			log.WithError(err).WithField("file", path).Warn("Skipping remote validator")
		}
	}
	return nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
