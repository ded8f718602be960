package memory

import (
	"testing"

	"sbomcore/testutil"
)

func TestMemoryStoreDoesNotImportElementLayer(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.CoreImportForbidden, "stores implement model.Store without knowing element kinds")
}
