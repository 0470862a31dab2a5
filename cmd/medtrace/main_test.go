package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medweb3/medtrace/pkg/testutil"
)

func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	defer testutil.DisableLogging()()

	cmd, err := newRootCmd()
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dataDir, "missing.yaml"),
		"--data-dir", dataDir,
		"--log-level", "error",
	}, args...))

	err = cmd.Execute()
	return out.String(), err
}

func fieldValue(t *testing.T, output, field string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, field+": ") {
			return strings.TrimPrefix(line, field+": ")
		}
	}
	require.Fail(t, "field not found", "%s in %s", field, output)
	return ""
}

func TestBatchLifecycle(t *testing.T) {
	dataDir := t.TempDir()

	out, err := execute(t, dataDir, "keygen", "manufacturer")
	require.NoError(t, err)
	manufacturer := fieldValue(t, out, "address")

	out, err = execute(t, dataDir, "keygen", "pharmacy")
	require.NoError(t, err)
	pharmacy := fieldValue(t, out, "address")

	_, err = execute(t, dataDir, "keygen", "pharmacy")
	assert.ErrorIs(t, err, ErrKeyExists)

	out, err = execute(t, dataDir, "airdrop", "manufacturer", "1000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000", fieldValue(t, out, "balance"))

	out, err = execute(t, dataDir, "create", "manufacturer", "LOT-A")
	require.NoError(t, err)
	batch := fieldValue(t, out, "batch")
	assert.Contains(t, out, "Program log: Batch created: batch_id=LOT-A")

	out, err = execute(t, dataDir, "show", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "batch_id=LOT-A")
	assert.Contains(t, out, "current_owner="+manufacturer)

	// Keys can be referenced by name or by address
	_, err = execute(t, dataDir, "transfer", "manufacturer", batch, pharmacy)
	require.NoError(t, err)

	out, err = execute(t, dataDir, "show", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "current_owner="+pharmacy)

	out, err = execute(t, dataDir, "transfer", "manufacturer", batch, "manufacturer")
	assert.Error(t, err)
	assert.Contains(t, out, "NotCurrentOwner")

	out, err = execute(t, dataDir, "verify", "manufacturer", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "Batch verified: batch_id=LOT-A")
	assert.Contains(t, out, "history_len=2")

	out, err = execute(t, dataDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, batch)
	assert.Contains(t, out, "owner="+pharmacy)

	_, err = execute(t, dataDir, "deactivate", "manufacturer", batch)
	assert.Error(t, err)

	out, err = execute(t, dataDir, "balance", pharmacy)
	require.NoError(t, err)
	assert.Equal(t, "0", fieldValue(t, out, "balance"))
}

func TestList_Empty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no batches")
}

func TestList_Paging(t *testing.T) {
	dataDir := t.TempDir()

	_, err := execute(t, dataDir, "keygen", "manufacturer")
	require.NoError(t, err)
	_, err = execute(t, dataDir, "airdrop", "manufacturer", "1000000000")
	require.NoError(t, err)

	out, err := execute(t, dataDir, "create", "manufacturer", "LOT-A")
	require.NoError(t, err)
	first := fieldValue(t, out, "batch")

	out, err = execute(t, dataDir, "create", "manufacturer", "LOT-B")
	require.NoError(t, err)
	second := fieldValue(t, out, "batch")

	out, err = execute(t, dataDir, "list", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, first)
	assert.NotContains(t, out, second)
	cursor := fieldValue(t, out, "next cursor")

	out, err = execute(t, dataDir, "list", "--limit", "1", "--cursor", cursor)
	require.NoError(t, err)
	assert.Contains(t, out, second)
	assert.NotContains(t, out, first)

	out, err = execute(t, dataDir, "list", "--limit", "1", "--order", "desc")
	require.NoError(t, err)
	assert.Contains(t, out, second)
	assert.NotContains(t, out, first)

	_, err = execute(t, dataDir, "list", "--order", "sideways")
	assert.Error(t, err)

	_, err = execute(t, dataDir, "list", "--cursor", "0OIl")
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store", storeLevelDB, "")

	assert.NoError(t, bindFlags(flags, map[string]string{"app.store": "store"}))
	assert.Error(t, bindFlags(flags, map[string]string{"app.data_dir": "data-directory"}))

	root, err := newRootCmd()
	require.NoError(t, err)
	for _, name := range flagBindings {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestUnknownStore(t *testing.T) {
	_, err := execute(t, t.TempDir(), "--store", "etcd", "list")
	assert.Error(t, err)
}

func TestKeyring(t *testing.T) {
	keys := newKeyring(t.TempDir())

	key, err := keys.Generate("alice")
	require.NoError(t, err)

	loaded, err := keys.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	resolved, err := keys.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, key.Public(), resolved)

	address := base58.Encode(resolved)
	resolved, err = keys.Resolve(address)
	require.NoError(t, err)
	assert.Equal(t, address, base58.Encode(resolved))

	_, err = keys.Load("bob")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = keys.Resolve("bob")
	assert.Error(t, err)

	_, err = keys.Generate("../escape")
	assert.Error(t, err)

	info, err := os.Stat(filepath.Join(keys.dir, "alice.key"))
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, info.Mode().Perm())
}
