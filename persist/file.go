package persist

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/reedsolomon"
	"github.com/pierrec/lz4/v3"

	"github.com/rezsim/rez/cmn/cos"
	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/world"
)

// SaveSimState writes the length-delimited, lz4-compressed record stream
// for roots (each written via WritePrimRecord) to
// "<dir>/simstate-<short>.dat", using the standard write-to-".new"-then-
// rename pattern so a crash mid-write never leaves a half-written file
// in place of a good one.
func SaveSimState(dir, shortName string, roots []*world.Prim, res Resolver) error {
	var raw bytes.Buffer
	w := NewWriter(&raw)
	for _, root := range roots {
		if err := WritePrimRecord(w, root, res); err != nil {
			return fmt.Errorf("persist: encoding root %s: %w", root.ID, err)
		}
	}
	if err := w.Err(); err != nil {
		return fmt.Errorf("persist: encoding simstate: %w", err)
	}

	compressed, err := compress(raw.Bytes())
	if err != nil {
		return fmt.Errorf("persist: compressing simstate: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: creating %s: %w", dir, err)
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("simstate-%s.dat", shortName))
	tmpPath := finalPath + ".new"

	if err := os.WriteFile(tmpPath, compressed, 0o644); err != nil {
		return fmt.Errorf("persist: writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("persist: renaming %s -> %s: %w", tmpPath, finalPath, err)
	}

	if err := writeBackupShards(dir, shortName, compressed); err != nil {
		nlog.Warningf("persist: backup shard write for %s failed (primary file is still valid): %v", shortName, err)
	}
	return nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(compressed))
	return io.ReadAll(zr)
}

const backupShardCount = 4
const backupParityShards = 2

// writeBackupShards erasure-codes the compressed file into
// backupShardCount data shards plus backupParityShards parity shards so
// the simstate can be reconstructed from any backupShardCount of the
// backupShardCount+backupParityShards total, protecting against loss of
// any single backup disk. Each shard is framed with a trailing
// big-endian xxhash32 checksum (cos.Checksum32) so
// RepairSimState can detect a corrupt shard before handing it to the
// decoder.
func writeBackupShards(dir, shortName string, compressed []byte) error {
	enc, err := reedsolomon.New(backupShardCount, backupParityShards)
	if err != nil {
		return err
	}
	shards, err := enc.Split(padToShardMultiple(compressed, backupShardCount))
	if err != nil {
		return err
	}
	if err := enc.Encode(shards); err != nil {
		return err
	}
	for i, shard := range shards {
		path := filepath.Join(dir, fmt.Sprintf("simstate-%s.shard%d", shortName, i))
		sum := cos.Checksum32(shard)
		framed := make([]byte, len(shard)+4)
		copy(framed, shard)
		framed[len(framed)-4] = byte(sum >> 24)
		framed[len(framed)-3] = byte(sum >> 16)
		framed[len(framed)-2] = byte(sum >> 8)
		framed[len(framed)-1] = byte(sum)
		if err := os.WriteFile(path+".new", framed, 0o644); err != nil {
			return err
		}
		if err := os.Rename(path+".new", path); err != nil {
			return err
		}
	}
	return nil
}

func padToShardMultiple(data []byte, numShards int) []byte {
	if len(data)%numShards == 0 {
		return data
	}
	pad := numShards - len(data)%numShards
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	return padded
}

// LoadSimState reads back a simstate file written by SaveSimState,
// decompresses it, and decodes every root PRIM_V3 record in the stream.
func LoadSimState(dir, shortName string) ([]*PrimRecord, error) {
	finalPath := filepath.Join(dir, fmt.Sprintf("simstate-%s.dat", shortName))
	compressed, err := os.ReadFile(finalPath)
	if err != nil {
		return nil, fmt.Errorf("persist: reading %s: %w", finalPath, err)
	}
	raw, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("persist: decompressing %s: %w", finalPath, err)
	}
	return decodeRootStream(raw)
}

func decodeRootStream(raw []byte) ([]*PrimRecord, error) {
	br := bytes.NewReader(raw)
	r := NewReader(br)
	var roots []*PrimRecord
	for br.Len() > 0 {
		magic, err := ReadMagic(r)
		if err != nil {
			return nil, err
		}
		if magic != MagicPrimV3 {
			return nil, fmt.Errorf("persist: expected root prim magic, got %#x", magic)
		}
		rec, err := ReadPrimRecord(r)
		if err != nil {
			return nil, err
		}
		roots = append(roots, rec)
	}
	return roots, nil
}

// RepairSimState reconstructs "<dir>/simstate-<short>.dat" from its
// erasure-coded backup shards when the primary file is missing or
// cannot be loaded (the primary file itself carries no checksum), the same recovery path the original region
// server's fsck-on-boot routine takes for a truncated simstate file.
func RepairSimState(dir, shortName string) ([]*PrimRecord, error) {
	enc, err := reedsolomon.New(backupShardCount, backupParityShards)
	if err != nil {
		return nil, err
	}
	shards := make([][]byte, backupShardCount+backupParityShards)
	var shardLen int
	present := 0
	for i := range shards {
		path := filepath.Join(dir, fmt.Sprintf("simstate-%s.shard%d", shortName, i))
		framed, err := os.ReadFile(path)
		if err != nil || len(framed) < 4 {
			continue
		}
		data, wantSum := framed[:len(framed)-4], framed[len(framed)-4:]
		gotSum := cos.Checksum32(data)
		if byte(gotSum>>24) != wantSum[0] || byte(gotSum>>16) != wantSum[1] ||
			byte(gotSum>>8) != wantSum[2] || byte(gotSum) != wantSum[3] {
			continue
		}
		shards[i] = data
		shardLen = len(data)
		present++
	}
	if present < backupShardCount {
		return nil, fmt.Errorf("persist: only %d/%d backup shards usable for %s, need %d",
			present, len(shards), shortName, backupShardCount)
	}
	for i, s := range shards {
		if s == nil {
			shards[i] = make([]byte, shardLen)
		}
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("persist: reconstructing %s from shards: %w", shortName, err)
	}
	var joined bytes.Buffer
	if err := enc.Join(&joined, shards, shardLen*backupShardCount); err != nil {
		return nil, fmt.Errorf("persist: joining reconstructed shards for %s: %w", shortName, err)
	}
	raw, err := decompress(joined.Bytes())
	if err != nil {
		return nil, fmt.Errorf("persist: decompressing reconstructed %s: %w", shortName, err)
	}
	return decodeRootStream(raw)
}
