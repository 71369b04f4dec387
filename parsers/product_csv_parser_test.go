package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestParseProductCSV(t *testing.T) {
	in := "\xEF\xBB\xBFName,Price,Category,Stock,Featured,Description\n" +
		"Salmon Kibble,129.9,cat-food,20,yes,Grain free\n" +
		",10,cat-toys,1,,\n" +
		"Feather Wand,abc,cat-toys,5,,\n" +
		"Scratcher,49,cat-toys,-2,,\n" +
		",,,,,\n" +
		"Litter Mat,35,cat-litter,,,\n"

	r, err := Decode(strings.NewReader(in), "utf-8")
	require.NoError(t, err)
	recs, rowErrs, err := ParseProductCSV(r)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, ParsedProductCSVRecord{
		Line: 2, Name: "Salmon Kibble", Description: "Grain free", PriceCents: 12990,
		Featured: true, Stock: 20, CategorySlug: "cat-food",
	}, recs[0])
	assert.Equal(t, "Litter Mat", recs[1].Name)
	assert.Equal(t, 0, recs[1].Stock)

	require.Len(t, rowErrs, 3)
	assert.Equal(t, 3, rowErrs[0].Line)
	assert.Equal(t, 4, rowErrs[1].Line)
	assert.Contains(t, rowErrs[2].Error(), "invalid stock")
}

func TestParseProductCSVReportsFileLines(t *testing.T) {
	in := "name,price,category,description\n" +
		"Cat Tree,299,cat-toys,\"Three levels\nwith a hammock\"\n" +
		"Broken Bowl,0,cat-care,\n" +
		"Brush,39,cat-care,\n"

	recs, rowErrs, err := ParseProductCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, "Three levels\nwith a hammock", recs[0].Description)
	assert.Equal(t, 5, recs[1].Line)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 4, rowErrs[0].Line)
}

func TestParseProductCSVRejectsHugePrice(t *testing.T) {
	in := "name,price,category\nGold Collar,184467440737095516.17,cat-care\n"
	recs, rowErrs, err := ParseProductCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, recs)
	require.Len(t, rowErrs, 1)
	assert.Contains(t, rowErrs[0].Message, "invalid price")
}

func TestParseProductCSVMissingHeader(t *testing.T) {
	_, _, err := ParseProductCSV(strings.NewReader("name,price\nx,1\n"))
	assert.EqualError(t, err, "required header not found: category")

	_, _, err = ParseProductCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDecodeGB18030(t *testing.T) {
	src := "name,price,category\n猫砂,25,cat-litter\n"
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String(src)
	require.NoError(t, err)

	r, err := Decode(bytes.NewReader([]byte(encoded)), "GB18030")
	require.NoError(t, err)
	recs, _, err := ParseProductCSV(r)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "猫砂", recs[0].Name)

	_, err = Decode(strings.NewReader(""), "latin1")
	assert.Error(t, err)
}
