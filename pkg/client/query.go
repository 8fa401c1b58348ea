package client

import (
	"github.com/Sternrassler/anilist-browser/pkg/media"
)

// OperationName is the GraphQL operation sent for every page request.
const OperationName = "GetAnimePage"

// animePageQuery selects one page of anime ordered by popularity.
const animePageQuery = `query GetAnimePage($page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo {
      currentPage
      hasNextPage
      perPage
    }
    media(type: ANIME, sort: POPULARITY_DESC) {
      id
      title {
        english
        romaji
        native
      }
      status
      type
      startDate {
        year
        month
        day
      }
      endDate {
        year
        month
        day
      }
      description
      coverImage {
        medium
        large
      }
    }
  }
}`

type pageVariables struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

type graphQLRequest struct {
	Query         string        `json:"query"`
	OperationName string        `json:"operationName"`
	Variables     pageVariables `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

type rawPageInfo struct {
	CurrentPage *int  `json:"currentPage"`
	HasNextPage *bool `json:"hasNextPage"`
	PerPage     *int  `json:"perPage"`
}

type rawPage struct {
	PageInfo *rawPageInfo     `json:"pageInfo"`
	Media    []media.RawMedia `json:"media"`
}

type graphQLResponse struct {
	Data *struct {
		Page *rawPage `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}
