package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
)

// MinChipSize is the smallest believable chip: anything below is a
// truncated or error response dressed as an image.
const MinChipSize = 1024 * 1024

// ErrChipNotFound is an error returned when no chip can be derived for the acquisition
type ErrChipNotFound struct {
	Product string
}

func (e ErrChipNotFound) Error() string {
	return fmt.Sprintf("Chip not found or unavailable: %s", e.Product)
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, req *grab.Request, displayPrefix string, copyAuthOnRedirect bool) error {
	client := grab.NewClient()
	if copyAuthOnRedirect {
		client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 408, 429, 500, 501, 502, 503, 504:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

// temporaryStatus reports whether an http status is worth a retry
func temporaryStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 501, 502, 503, 504:
		return true
	}
	return false
}

// ValidateChip checks that the downloaded chip is plausible. A file below
// MinChipSize is removed and the error is temporary: the provider answered,
// but not with the chip.
func ValidateChip(localFile string) error {
	stat, err := os.Stat(localFile)
	if err != nil {
		return fmt.Errorf("ValidateChip: %w", err)
	}
	if stat.Size() < MinChipSize {
		os.Remove(localFile)
		return service.MakeTemporary(fmt.Errorf("ValidateChip[%s]: file too small (%s)", localFile, fmtBytes(stat.Size())))
	}
	return nil
}
