package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parents) with the given contents.
func WriteFile(t testing.TB, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTrialOutputs lays down the files the processing command leaves behind
// for one trial under <dataDir>/Data/<session>. Static trials also get a
// scaled model.
func WriteTrialOutputs(t testing.TB, dataDir, sessionID, trialName string, static bool) {
	t.Helper()

	root := filepath.Join(dataDir, "Data", sessionID)
	WriteFile(t, filepath.Join(root, "MarkerData", trialName+".trc"), "trc "+trialName)
	WriteFile(t, filepath.Join(root, "OpenSimData", "Kinematics", trialName+".mot"), "mot "+trialName)
	WriteFile(t, filepath.Join(root, "VisualizerJsons", trialName, trialName+".json"), `{"trial":"`+trialName+`"}`)
	if static {
		WriteFile(t, filepath.Join(root, "OpenSimData", "Model", "LaiUhlrich2022_scaled.osim"), "<OpenSimDocument/>")
	}
}
