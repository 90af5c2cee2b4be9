package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// EnrichedDetail is the normalized output of one provider lookup. Fields the
// provider did not supply stay at their zero value.
type EnrichedDetail struct {
	ID            string   `json:"id"`
	Title         string   `json:"title,omitempty"`
	Tagline       string   `json:"tagline,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	Year          int      `json:"year,omitempty"`
	RuntimeMin    int      `json:"runtime_min,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	VoteCount     int      `json:"vote_count,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Certification string   `json:"certification,omitempty"`
	PosterURL     string   `json:"poster_url,omitempty"`
	Backdrops     []string `json:"backdrops,omitempty"`
	SeasonCount   int      `json:"season_count,omitempty"`
	EpisodeCount  int      `json:"episode_count,omitempty"`
	IMDBID        string   `json:"imdb_id,omitempty"`
}

const (
	posterBase   = "https://image.tmdb.org/t/p/w500"
	backdropBase = "https://image.tmdb.org/t/p/w1280"
)

type tmdbGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type tmdbReleaseDateCountry struct {
	ISO31661     string `json:"iso_3166_1"`
	ReleaseDates []struct {
		Certification string `json:"certification"`
	} `json:"release_dates"`
}

// extractCertification returns the US certification (e.g. "PG-13") from a
// release_dates / content_ratings style country list.
func extractCertification(countries []tmdbReleaseDateCountry) string {
	for _, c := range countries {
		if c.ISO31661 != "US" {
			continue
		}
		for _, rd := range c.ReleaseDates {
			if rd.Certification != "" {
				return rd.Certification
			}
		}
	}
	return ""
}

func yearOf(dateStr string) int {
	if len(dateStr) < 4 {
		return 0
	}
	y, err := strconv.Atoi(dateStr[:4])
	if err != nil {
		return 0
	}
	return y
}

type tmdbImages struct {
	Backdrops []struct {
		FilePath string `json:"file_path"`
	} `json:"backdrops"`
}

func backdropURLs(primary string, images tmdbImages, limit int) []string {
	var out []string
	if primary != "" {
		out = append(out, backdropBase+primary)
	}
	for _, b := range images.Backdrops {
		if len(out) >= limit {
			break
		}
		u := backdropBase + b.FilePath
		if len(out) > 0 && out[0] == u {
			continue
		}
		out = append(out, u)
	}
	return out
}

// MovieDetails fetches enriched detail for one movie.
func (c *Client) MovieDetails(ctx context.Context, id string, language string) (*EnrichedDetail, error) {
	q := url.Values{}
	q.Set("append_to_response", "release_dates,images")
	q.Set("include_image_language", "null")
	if language != "" {
		q.Set("language", language)
	}

	var r struct {
		ID           int        `json:"id"`
		Title        string     `json:"title"`
		Tagline      string     `json:"tagline"`
		Overview     string     `json:"overview"`
		PosterPath   string     `json:"poster_path"`
		BackdropPath string     `json:"backdrop_path"`
		ReleaseDate  string     `json:"release_date"`
		Runtime      int        `json:"runtime"`
		VoteAverage  float64    `json:"vote_average"`
		VoteCount    int        `json:"vote_count"`
		IMDBId       string     `json:"imdb_id"`
		Genres       []tmdbGenre `json:"genres"`
		ReleaseDates struct {
			Results []tmdbReleaseDateCountry `json:"results"`
		} `json:"release_dates"`
		Images tmdbImages `json:"images"`
	}
	if err := c.get(ctx, "/movie/"+id, q, &r); err != nil {
		return nil, err
	}

	d := &EnrichedDetail{
		ID:            fmt.Sprintf("%d", r.ID),
		Title:         r.Title,
		Tagline:       r.Tagline,
		Overview:      r.Overview,
		Year:          yearOf(r.ReleaseDate),
		RuntimeMin:    r.Runtime,
		Rating:        r.VoteAverage,
		VoteCount:     r.VoteCount,
		Certification: extractCertification(r.ReleaseDates.Results),
		Backdrops:     backdropURLs(r.BackdropPath, r.Images, 4),
		IMDBID:        r.IMDBId,
	}
	if r.PosterPath != "" {
		d.PosterURL = posterBase + r.PosterPath
	}
	for _, g := range r.Genres {
		d.Genres = append(d.Genres, g.Name)
	}
	return d, nil
}

// TVDetails fetches enriched detail for one show, including season and
// episode counts and a typical episode runtime.
func (c *Client) TVDetails(ctx context.Context, id string, language string) (*EnrichedDetail, error) {
	q := url.Values{}
	q.Set("append_to_response", "content_ratings,external_ids,images")
	q.Set("include_image_language", "null")
	if language != "" {
		q.Set("language", language)
	}

	var r struct {
		ID               int        `json:"id"`
		Name             string     `json:"name"`
		Tagline          string     `json:"tagline"`
		Overview         string     `json:"overview"`
		PosterPath       string     `json:"poster_path"`
		BackdropPath     string     `json:"backdrop_path"`
		FirstAirDate     string     `json:"first_air_date"`
		EpisodeRunTime   []int      `json:"episode_run_time"`
		NumberOfSeasons  int        `json:"number_of_seasons"`
		NumberOfEpisodes int        `json:"number_of_episodes"`
		VoteAverage      float64    `json:"vote_average"`
		VoteCount        int        `json:"vote_count"`
		Genres           []tmdbGenre `json:"genres"`
		ContentRatings   struct {
			Results []struct {
				ISO31661 string `json:"iso_3166_1"`
				Rating   string `json:"rating"`
			} `json:"results"`
		} `json:"content_ratings"`
		ExternalIDs struct {
			IMDBId string `json:"imdb_id"`
		} `json:"external_ids"`
		Images tmdbImages `json:"images"`
	}
	if err := c.get(ctx, "/tv/"+id, q, &r); err != nil {
		return nil, err
	}

	d := &EnrichedDetail{
		ID:           fmt.Sprintf("%d", r.ID),
		Title:        r.Name,
		Tagline:      r.Tagline,
		Overview:     r.Overview,
		Year:         yearOf(r.FirstAirDate),
		Rating:       r.VoteAverage,
		VoteCount:    r.VoteCount,
		Backdrops:    backdropURLs(r.BackdropPath, r.Images, 4),
		SeasonCount:  r.NumberOfSeasons,
		EpisodeCount: r.NumberOfEpisodes,
		IMDBID:       r.ExternalIDs.IMDBId,
	}
	if len(r.EpisodeRunTime) > 0 {
		d.RuntimeMin = r.EpisodeRunTime[0]
	}
	if r.PosterPath != "" {
		d.PosterURL = posterBase + r.PosterPath
	}
	for _, g := range r.Genres {
		d.Genres = append(d.Genres, g.Name)
	}
	for _, cr := range r.ContentRatings.Results {
		if cr.ISO31661 == "US" && cr.Rating != "" {
			d.Certification = cr.Rating
			break
		}
	}
	return d, nil
}

// SeasonDetails fetches one season of a show.
func (c *Client) SeasonDetails(ctx context.Context, tvID string, seasonNumber int, language string) (*EnrichedDetail, error) {
	q := url.Values{}
	if language != "" {
		q.Set("language", language)
	}

	var r struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Overview   string `json:"overview"`
		PosterPath string `json:"poster_path"`
		AirDate    string `json:"air_date"`
		Episodes   []struct {
			Runtime int `json:"runtime"`
		} `json:"episodes"`
	}
	path := fmt.Sprintf("/tv/%s/season/%d", tvID, seasonNumber)
	if err := c.get(ctx, path, q, &r); err != nil {
		return nil, err
	}

	d := &EnrichedDetail{
		ID:           fmt.Sprintf("%d", r.ID),
		Title:        r.Name,
		Overview:     r.Overview,
		Year:         yearOf(r.AirDate),
		EpisodeCount: len(r.Episodes),
	}
	if r.PosterPath != "" {
		d.PosterURL = posterBase + r.PosterPath
	}
	for _, ep := range r.Episodes {
		if ep.Runtime > 0 {
			d.RuntimeMin = ep.Runtime
			break
		}
	}
	return d, nil
}

// FindByIMDB resolves a TMDB ID from an IMDB identifier. Returns "" when the
// provider has no mapping.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string, wantTV bool) (string, error) {
	q := url.Values{}
	q.Set("external_source", "imdb_id")

	var r struct {
		MovieResults []struct {
			ID int `json:"id"`
		} `json:"movie_results"`
		TVResults []struct {
			ID int `json:"id"`
		} `json:"tv_results"`
	}
	if err := c.get(ctx, "/find/"+imdbID, q, &r); err != nil {
		return "", err
	}
	if wantTV {
		if len(r.TVResults) > 0 {
			return fmt.Sprintf("%d", r.TVResults[0].ID), nil
		}
		return "", nil
	}
	if len(r.MovieResults) > 0 {
		return fmt.Sprintf("%d", r.MovieResults[0].ID), nil
	}
	return "", nil
}

// SearchID resolves a TMDB ID from a title (and optional year), taking the
// top result. Returns "" when nothing matches.
func (c *Client) SearchID(ctx context.Context, title string, year int, wantTV bool) (string, error) {
	q := url.Values{}
	q.Set("query", title)
	searchType := "movie"
	if wantTV {
		searchType = "tv"
		if year > 0 {
			q.Set("first_air_date_year", strconv.Itoa(year))
		}
	} else if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var r struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/search/"+searchType, q, &r); err != nil {
		return "", err
	}

	// If year narrowed the search to nothing, retry without it.
	if len(r.Results) == 0 && year > 0 {
		return c.SearchID(ctx, title, 0, wantTV)
	}
	if len(r.Results) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d", r.Results[0].ID), nil
}
