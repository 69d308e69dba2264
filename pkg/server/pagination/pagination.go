package pagination

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/issuer-service/pkg/server/framework"
)

// PageToken is what a next page token decodes to. It is bound to the query it was issued for.
type PageToken struct {
	EncodedQuery string `json:"encodedQuery"`
	Offset       int    `json:"offset"`
}

const (
	PageSizeParam  = "pageSize"
	PageTokenParam = "pageToken"
)

// PageRequest contains the parameters sent in the request.
type PageRequest struct {
	// PageSize is the value associated with PageSizeParam. A nil value means it was not present in the query. When the
	// parameter is absent, all items in the collection are included in the response.
	PageSize *int

	// Offset of the first item of the page, taken from the PageTokenParam.
	Offset int
}

// ParsePaginationParams reads the PageSizeParam and PageTokenParam from the URL query. The value encoded in
// PageTokenParam is assumed to be the base64url encoding of a PageToken. It is an error for the query params to be
// different from the query params encoded in the PageToken.
func ParsePaginationParams(c *gin.Context) (*PageRequest, error) {
	var pageRequest PageRequest
	if pageSizeStr := framework.GetQueryValue(c, PageSizeParam); pageSizeStr != nil {
		pageSize, err := strconv.Atoi(*pageSizeStr)
		if err != nil {
			errMsg := fmt.Sprintf("could not parse the %q query param", PageSizeParam)
			return nil, framework.NewRequestErrorWithMsg(err, errMsg, http.StatusBadRequest)
		}
		if pageSize <= 0 {
			return nil, framework.NewRequestErrorMsg(fmt.Sprintf("'%s' must be greater than 0", PageSizeParam), http.StatusBadRequest)
		}
		pageRequest.PageSize = &pageSize
	}

	queryPageToken := framework.GetQueryValue(c, PageTokenParam)
	if queryPageToken == nil {
		return &pageRequest, nil
	}
	errMsg := "token value cannot be decoded"
	tokenData, err := base64.RawURLEncoding.DecodeString(*queryPageToken)
	if err != nil {
		return nil, framework.NewRequestErrorWithMsg(err, errMsg, http.StatusBadRequest)
	}
	var pageToken PageToken
	if err = json.Unmarshal(tokenData, &pageToken); err != nil {
		return nil, framework.NewRequestErrorWithMsg(err, errMsg, http.StatusBadRequest)
	}
	pageTokenValues, err := url.ParseQuery(pageToken.EncodedQuery)
	if err != nil {
		return nil, framework.NewRequestErrorWithMsg(err, errMsg, http.StatusBadRequest)
	}
	if pageToken.Offset < 0 {
		return nil, framework.NewRequestErrorMsg(errMsg, http.StatusBadRequest)
	}

	query := pageTokenQuery(c)
	if !reflect.DeepEqual(pageTokenValues, query) {
		logrus.Warnf("expected query from token to be equal to query from request. token: %v\nrequest%v", pageTokenValues, query)
		return nil, framework.NewRequestErrorMsg("page token must be for the same query", http.StatusBadRequest)
	}
	pageRequest.Offset = pageToken.Offset
	return &pageRequest, nil
}

func pageTokenQuery(c *gin.Context) url.Values {
	query := c.Request.URL.Query()
	delete(query, PageTokenParam)
	delete(query, PageSizeParam)
	return query
}

// Paginate returns the page of items the request asks for, along with the token of the next page. The token is empty
// on the last page.
func Paginate[T any](c *gin.Context, items []T, pageRequest *PageRequest) ([]T, string, error) {
	if pageRequest == nil {
		return items, "", nil
	}
	if pageRequest.Offset >= len(items) {
		return []T{}, "", nil
	}
	page := items[pageRequest.Offset:]
	if pageRequest.PageSize == nil || *pageRequest.PageSize >= len(page) {
		return page, "", nil
	}
	page = page[:*pageRequest.PageSize]

	nextPageToken := PageToken{
		EncodedQuery: pageTokenQuery(c).Encode(),
		Offset:       pageRequest.Offset + len(page),
	}
	nextPageTokenData, err := json.Marshal(nextPageToken)
	if err != nil {
		return nil, "", framework.NewRequestErrorWithMsg(err, "marshalling page token", http.StatusInternalServerError)
	}
	return page, base64.RawURLEncoding.EncodeToString(nextPageTokenData), nil
}
