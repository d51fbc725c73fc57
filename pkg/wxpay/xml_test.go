package wxpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLRoundTrip(t *testing.T) {
	in := map[string]string{
		"return_code":  "SUCCESS",
		"out_trade_no": "ORD-1",
		"body":         "widget & more",
	}
	out, err := decodeXML(encodeXML(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeXMLHandlesCDATA(t *testing.T) {
	out, err := decodeXML([]byte("<xml><return_code><![CDATA[SUCCESS]]></return_code></xml>"))
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", out["return_code"])
}

func TestDecodeXMLRejectsGarbage(t *testing.T) {
	_, err := decodeXML([]byte("not xml at all"))
	assert.Error(t, err)

	_, err = decodeXML([]byte("<xml></xml>"))
	assert.Error(t, err)
}
