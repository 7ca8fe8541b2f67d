package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fikircreative/prospector/internal/lead"
)

func TestWriteCSV(t *testing.T) {
	leads := []lead.Lead{
		{
			Name:    `Gülüş "Premium" Diş`,
			Address: lead.StringPtr("Moda Cd. 1, Kadıköy"),
			Phone:   lead.StringPtr("0216 000 00 00"),
			Rating:  lead.Float64Ptr(4.66),
			City:    "İstanbul",
			Country: "Türkiye",
		},
		{Name: "Beyaz Diş", City: "İstanbul", Country: "Türkiye"},
	}

	var b strings.Builder
	require.NoError(t, WriteCSV(&b, leads))

	want := `"Name","Address","Phone","Website","Rating","City","Country"` + "\n" +
		`"Gülüş ""Premium"" Diş","Moda Cd. 1, Kadıköy","0216 000 00 00","","4.7","İstanbul","Türkiye"` + "\n" +
		`"Beyaz Diş","","","","","İstanbul","Türkiye"`
	require.Equal(t, want, b.String())

	records, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, `Gülüş "Premium" Diş`, records[1][0])
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteCSV(&b, nil))
	require.Equal(t, `"Name","Address","Phone","Website","Rating","City","Country"`, b.String())
}

func TestFilename(t *testing.T) {
	require.Equal(t, "prospector_leads_1700000000123.csv", Filename(time.UnixMilli(1700000000123)))
}
