package pipeline_test

import (
	"context"
	"testing"

	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var ctx context.Context
var utmWKT string

var _ = BeforeSuite(func() {
	godal.RegisterAll()
	ctx = context.Background()

	sr, err := godal.NewSpatialRefFromEPSG(32632)
	Expect(err).NotTo(HaveOccurred())
	defer sr.Close()
	utmWKT, err = sr.WKT()
	Expect(err).NotTo(HaveOccurred())
})

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}
