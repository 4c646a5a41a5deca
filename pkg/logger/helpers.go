package logger

// LogDownload records the outcome of a single post download.
func LogDownload(source string, id uint64, success bool, err error) {
	l := GetLogger().WithFields(map[string]interface{}{
		"source":  source,
		"post_id": id,
		"success": success,
	})

	switch {
	case err != nil:
		l.WithError(err).Error("Download failed")
	case success:
		l.Debug("Download completed")
	default:
		l.Debug("Download skipped")
	}
}

// LogPage records a fetched result page.
func LogPage(source string, page int, count int) {
	GetLogger().WithFields(map[string]interface{}{
		"source": source,
		"page":   page,
		"posts":  count,
	}).Debug("Page scanned")
}
