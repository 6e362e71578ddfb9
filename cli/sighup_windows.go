package cli

// onExternalConfigReloadRequest is not supported on Windows.
func onExternalConfigReloadRequest(f func()) (stop func()) {
	return func() {}
}
